package leave

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// Operation names a capability checked by the Resolver.
type Operation string

const (
	OpSubmit            Operation = "SUBMIT"
	OpView              Operation = "VIEW"
	OpWithdraw          Operation = "WITHDRAW"
	OpApproveStaff      Operation = "APPROVE_STAFF"
	OpApproveSupervisor Operation = "APPROVE_SUPERVISOR"
	OpVerifyReturn      Operation = "VERIFY_RETURN"
	OpVerifyRecovery    Operation = "VERIFY_RECOVERY"
	OpReport            Operation = "REPORT"
)

// RoleConfig lists which roles make up each authority tier.
type RoleConfig struct {
	Requester  []models.UserRole
	Staff      []models.UserRole
	Supervisor []models.UserRole
}

// DefaultRoleConfig mirrors the pesantren hierarchy: guardians request,
// ustadzah review first and ndalem gives the final word.
func DefaultRoleConfig() RoleConfig {
	return RoleConfig{
		Requester:  []models.UserRole{models.RoleWaliSantri},
		Staff:      []models.UserRole{models.RoleUstadzah, models.RoleNdalem, models.RoleSuperAdmin},
		Supervisor: []models.UserRole{models.RoleNdalem, models.RoleSuperAdmin},
	}
}

// RoleConfigFromStrings converts configuration values into a RoleConfig.
func RoleConfigFromStrings(requester, staff, supervisor []string) RoleConfig {
	return RoleConfig{
		Requester:  toRoles(requester),
		Staff:      toRoles(staff),
		Supervisor: toRoles(supervisor),
	}
}

// Validate requires the supervisor tier to be a strictly smaller subset of the staff tier.
func (c RoleConfig) Validate() error {
	if len(c.Requester) == 0 {
		return fmt.Errorf("requester roles must not be empty")
	}
	if len(c.Supervisor) == 0 {
		return fmt.Errorf("supervisor roles must not be empty")
	}
	staff := newRoleSet(c.Staff)
	supervisor := newRoleSet(c.Supervisor)
	for role := range supervisor {
		if _, ok := staff[role]; !ok {
			return fmt.Errorf("supervisor role %s is not a staff role", role)
		}
	}
	if len(supervisor) >= len(staff) {
		return fmt.Errorf("supervisor roles must be a strict subset of staff roles")
	}
	return nil
}

type roleSet map[models.UserRole]struct{}

func newRoleSet(roles ...[]models.UserRole) roleSet {
	set := roleSet{}
	for _, group := range roles {
		for _, role := range group {
			set[role] = struct{}{}
		}
	}
	return set
}

func (s roleSet) has(role models.UserRole) bool {
	_, ok := s[role]
	return ok
}

func (s roleSet) list() []models.UserRole {
	out := make([]models.UserRole, 0, len(s))
	for _, role := range models.KnownRoles {
		if s.has(role) {
			out = append(out, role)
		}
	}
	extra := make([]models.UserRole, 0)
	for role := range s {
		if !models.IsKnownRole(role) {
			extra = append(extra, role)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

type capability struct {
	roles roleSet
	kind  models.LeaveKind
}

// Resolver answers whether a role may perform an operation on a record.
// It holds no state beyond the capability table and is safe for concurrent use.
type Resolver struct {
	table map[Operation]capability
}

// NewResolver builds the capability table from the configured tiers.
func NewResolver(cfg RoleConfig) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	requester := newRoleSet(cfg.Requester)
	staff := newRoleSet(cfg.Staff)
	supervisor := newRoleSet(cfg.Supervisor)

	return &Resolver{table: map[Operation]capability{
		OpSubmit:            {roles: requester},
		OpWithdraw:          {roles: requester},
		OpView:              {roles: newRoleSet(cfg.Requester, cfg.Staff)},
		OpReport:            {roles: staff},
		OpApproveStaff:      {roles: staff},
		OpApproveSupervisor: {roles: supervisor, kind: models.LeaveKindHome},
		OpVerifyReturn:      {roles: supervisor, kind: models.LeaveKindHome},
		OpVerifyRecovery:    {roles: supervisor, kind: models.LeaveKindSick},
	}}, nil
}

// CanPerform reports whether role holds the capability for op. When app is
// non-nil, variant-specific operations also require the matching leave kind.
func (r *Resolver) CanPerform(role models.UserRole, op Operation, app *models.LeaveApplication) bool {
	if r == nil {
		return false
	}
	entry, ok := r.table[op]
	if !ok || !entry.roles.has(role) {
		return false
	}
	if entry.kind != "" && app != nil && app.Kind() != entry.kind {
		return false
	}
	return true
}

// Roles lists the roles allowed to perform op, for route-level guards.
func (r *Resolver) Roles(op Operation) []models.UserRole {
	if r == nil {
		return nil
	}
	entry, ok := r.table[op]
	if !ok {
		return nil
	}
	return entry.roles.list()
}

func toRoles(values []string) []models.UserRole {
	roles := make([]models.UserRole, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			roles = append(roles, models.UserRole(v))
		}
	}
	return roles
}
