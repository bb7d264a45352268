package address

import "fmt"

// Namespaces used as the first seed of every ledger address.
const (
	NamespaceRound       = "round"
	NamespaceVault       = "vault"
	NamespaceTicket      = "ticket"
	NamespaceUserProfile = "user_profile"
)

// Resolver maps (namespace, key parts) to addresses under one program id.
// It holds no state besides the program id and is safe for concurrent use.
type Resolver struct {
	program Address
}

// NewResolver returns a Resolver deriving addresses for program.
func NewResolver(program Address) *Resolver {
	return &Resolver{program: program}
}

// Program returns the program id the resolver derives under.
func (r *Resolver) Program() Address { return r.program }

// Resolve derives the address for namespace and parts.
func (r *Resolver) Resolve(namespace string, parts ...[]byte) (Address, uint8, error) {
	seeds := make([][]byte, 0, len(parts)+1)
	seeds = append(seeds, []byte(namespace))
	seeds = append(seeds, parts...)
	return FindProgramAddress(seeds, r.program)
}

// mustResolve is used for the fixed ledger namespaces, whose seeds are always
// within the length limits. A missing bump has negligible probability and
// cannot be recovered from, same as the on-chain runtime.
func (r *Resolver) mustResolve(namespace string, parts ...[]byte) (Address, uint8) {
	addr, bump, err := r.Resolve(namespace, parts...)
	if err != nil {
		panic(fmt.Sprintf("address: resolve %s: %v", namespace, err))
	}
	return addr, bump
}

// Round returns the address of round n.
func (r *Resolver) Round(n uint64) (Address, uint8) {
	return r.mustResolve(NamespaceRound, U64(n))
}

// Vault returns the address of the vault of round n.
func (r *Resolver) Vault(n uint64) (Address, uint8) {
	return r.mustResolve(NamespaceVault, U64(n))
}

// TicketPosition returns the address of the position bought by buyer in the
// round at roundAddr, starting at startIndex.
func (r *Resolver) TicketPosition(roundAddr, buyer Address, startIndex uint64) (Address, uint8) {
	return r.mustResolve(NamespaceTicket, roundAddr[:], buyer[:], U64(startIndex))
}

// UserProfile returns the address of the profile of user.
func (r *Resolver) UserProfile(user Address) (Address, uint8) {
	return r.mustResolve(NamespaceUserProfile, user[:])
}
