// Package domain holds the pure value types of the link-compliance engine:
// tenant domain rules, extracted links, per-link classifications and the
// aggregate compliance result. It has no I/O and no third-party imports.
package domain
