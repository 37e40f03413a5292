package access

// ScopeFilter is the set of tenant IDs a query or mutation is narrowed to.
// An empty field means "unconstrained" on that axis.
type ScopeFilter struct {
	AccountID string `json:"accountId,omitempty"`
	AgencyID  string `json:"agencyId,omitempty"`
}

// IsUnrestricted reports whether the filter constrains nothing.
func (f ScopeFilter) IsUnrestricted() bool {
	return f.AccountID == "" && f.AgencyID == ""
}

// Contains reports whether target falls within f. An empty field in f
// matches anything; a set field must match exactly. A target with an empty
// field is only contained when f leaves that field unconstrained, so a
// tenant-bound caller can never address "all accounts".
func (f ScopeFilter) Contains(target ScopeFilter) bool {
	if f.AccountID != "" && target.AccountID != f.AccountID {
		return false
	}
	if f.AgencyID != "" && target.AgencyID != f.AgencyID {
		return false
	}
	return true
}

// ResolveScope computes the filter a caller is confined to. It must be
// applied before any downstream read or write.
//
//   - Platform: unrestricted; explicit request filters pass through.
//   - Account:  pinned to the caller's account.
//   - Agency:   pinned to the caller's account and agency.
func ResolveScope(id Identity) ScopeFilter {
	switch id.Portal {
	case PortalAccount:
		return ScopeFilter{AccountID: id.AccountID}
	case PortalAgency:
		return ScopeFilter{AccountID: id.AccountID, AgencyID: id.AgencyID}
	default:
		return ScopeFilter{}
	}
}

// NarrowFilter intersects a caller-supplied filter with the caller's
// resolved scope. The resolved scope always wins: a requested filter can
// narrow it further but never widen it. A requested filter that conflicts
// with the resolved scope (a different tenant) returns ErrOutOfScope rather
// than silently substituting the caller's own tenant.
func NarrowFilter(id Identity, requested ScopeFilter) (ScopeFilter, error) {
	resolved := ResolveScope(id)

	out := resolved
	if requested.AccountID != "" {
		if resolved.AccountID != "" && requested.AccountID != resolved.AccountID {
			return ScopeFilter{}, ErrOutOfScope
		}
		out.AccountID = requested.AccountID
	}
	if requested.AgencyID != "" {
		if resolved.AgencyID != "" && requested.AgencyID != resolved.AgencyID {
			return ScopeFilter{}, ErrOutOfScope
		}
		out.AgencyID = requested.AgencyID
	}
	return out, nil
}
