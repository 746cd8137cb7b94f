package domain

import "errors"

var (
	ErrInvalidTenant   = errors.New("tenant id must not be empty")
	ErrInvalidDomain   = errors.New("invalid rule domain")
	ErrInvalidRuleType = errors.New("unsupported rule type")
	ErrInvalidContent  = errors.New("content is not valid UTF-8")
	ErrDuplicateRule   = errors.New("rule already exists for tenant")
	ErrRuleNotFound    = errors.New("rule not found")
	ErrStoreClosed     = errors.New("rule store is closed")
)
