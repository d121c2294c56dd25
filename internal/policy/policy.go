// Package policy decides whether a principal may perform an operation on a
// target account. Decisions come from an ordered list of rules; the first
// rule that applies to the operation decides.
package policy

import "github.com/isdelr/ender-accounts/internal/models"

// Operation names a gated account operation.
type Operation string

const (
	OpSignUp             Operation = "signup"
	OpViewByID           Operation = "viewById"
	OpPaginationMetadata Operation = "paginationMetadata"
	OpListAll            Operation = "listAll"
	OpUpdateProfile      Operation = "updateProfile"
	OpUpdatePassword     Operation = "updatePassword"
	OpViewAuditLog       Operation = "viewAuditLog"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonInsufficientRole Reason = "insufficientRole"
	ReasonNotOwner         Reason = "notOwner"
	ReasonUnknownOperation Reason = "unknownOperation"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow permits the operation.
func Allow() Decision { return Decision{Allowed: true} }

// Deny rejects the operation for reason.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }

// Request is the input every rule sees.
type Request struct {
	Principal models.Principal
	Operation Operation
	TargetID  string
}

// Rule pairs an applicability predicate with a decision.
type Rule struct {
	Name    string
	Applies func(op Operation) bool
	Decide  func(req Request) Decision
}

// Override is an externally granted administrative capability. It is
// consulted only by the account mutation rule and is independent of role.
type Override interface {
	Grants(p models.Principal, op Operation, targetID string) bool
}

// NoOverride grants nothing.
type NoOverride struct{}

// Grants always returns false.
func (NoOverride) Grants(models.Principal, Operation, string) bool { return false }

// OverrideSet grants the mutation override to a fixed set of principal ids.
type OverrideSet map[string]struct{}

// NewOverrideSet builds an OverrideSet from principal ids. Empty ids are ignored.
func NewOverrideSet(ids ...string) OverrideSet {
	s := make(OverrideSet, len(ids))
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
	return s
}

// Grants reports whether p is one of the configured administrators.
func (s OverrideSet) Grants(p models.Principal, _ Operation, _ string) bool {
	if p.IsAnonymous() {
		return false
	}
	_, ok := s[p.ID]
	return ok
}

// Engine evaluates rules in order.
type Engine struct {
	rules []Rule
}

// NewEngine creates an Engine with the default account rules.
// A nil override grants nothing.
func NewEngine(override Override) *Engine {
	if override == nil {
		override = NoOverride{}
	}
	return NewEngineWithRules(DefaultRules(override))
}

// NewEngineWithRules creates an Engine from an explicit ordered rule list.
func NewEngineWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Authorize returns the decision of the first rule applying to op.
// Operations no rule covers are denied.
func (e *Engine) Authorize(p models.Principal, op Operation, targetID string) Decision {
	req := Request{Principal: p, Operation: op, TargetID: targetID}
	for _, r := range e.rules {
		if r.Applies(op) {
			return r.Decide(req)
		}
	}
	return Deny(ReasonUnknownOperation)
}

// DefaultRules returns the account rules in precedence order.
func DefaultRules(override Override) []Rule {
	return []Rule{
		{
			Name:    "manager-read",
			Applies: oneOf(OpListAll, OpViewAuditLog),
			Decide:  requireRole(models.RoleManager),
		},
		{
			Name:    "public-read",
			Applies: oneOf(OpViewByID, OpPaginationMetadata),
			Decide:  func(Request) Decision { return Allow() },
		},
		{
			Name:    "owner-write",
			Applies: oneOf(OpUpdateProfile, OpUpdatePassword),
			Decide:  requireOwnerOr(override),
		},
		{
			Name:    "signup",
			Applies: oneOf(OpSignUp),
			Decide:  func(Request) Decision { return Allow() },
		},
	}
}

func oneOf(ops ...Operation) func(Operation) bool {
	return func(op Operation) bool {
		for _, o := range ops {
			if o == op {
				return true
			}
		}
		return false
	}
}

func requireRole(role models.Role) func(Request) Decision {
	return func(req Request) Decision {
		if !req.Principal.IsAnonymous() && req.Principal.Role == role {
			return Allow()
		}
		return Deny(ReasonInsufficientRole)
	}
}

// A manager role alone never satisfies this rule.
func requireOwnerOr(override Override) func(Request) Decision {
	return func(req Request) Decision {
		p := req.Principal
		if !p.IsAnonymous() && req.TargetID != "" && p.ID == req.TargetID {
			return Allow()
		}
		if override.Grants(p, req.Operation, req.TargetID) {
			return Allow()
		}
		return Deny(ReasonNotOwner)
	}
}
