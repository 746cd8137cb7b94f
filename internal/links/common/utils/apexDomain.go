package utils

import "golang.org/x/net/publicsuffix"

// GetApexDomain returns the registrable domain (eTLD+1) for name, falling
// back to the canonical name when the public suffix list cannot resolve it.
func GetApexDomain(name string) string {
	name = CanonicalHost(name)
	apexDomain, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		apexDomain = name
	}
	return apexDomain
}
