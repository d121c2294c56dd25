package policy

import (
	"testing"

	"github.com/isdelr/ender-accounts/internal/models"
	"github.com/stretchr/testify/assert"
)

var (
	standard = models.Principal{ID: "acc-1", Role: models.RoleStandard}
	manager  = models.Principal{ID: "acc-2", Role: models.RoleManager}
	anon     = models.Anonymous()
)

func TestAuthorize_DefaultRules(t *testing.T) {
	e := NewEngine(nil)

	tests := []struct {
		name      string
		principal models.Principal
		op        Operation
		target    string
		want      Decision
	}{
		{"list all - manager", manager, OpListAll, "", Allow()},
		{"list all - standard", standard, OpListAll, "", Deny(ReasonInsufficientRole)},
		{"list all - anonymous", anon, OpListAll, "", Deny(ReasonInsufficientRole)},
		{"audit log - manager", manager, OpViewAuditLog, "", Allow()},
		{"audit log - standard", standard, OpViewAuditLog, "", Deny(ReasonInsufficientRole)},
		{"view by id - anonymous", anon, OpViewByID, "acc-9", Allow()},
		{"view by id - standard", standard, OpViewByID, "acc-9", Allow()},
		{"page metadata - anonymous", anon, OpPaginationMetadata, "", Allow()},
		{"update profile - owner", standard, OpUpdateProfile, "acc-1", Allow()},
		{"update profile - other", standard, OpUpdateProfile, "acc-9", Deny(ReasonNotOwner)},
		{"update password - owner", standard, OpUpdatePassword, "acc-1", Allow()},
		{"update password - manager on other", manager, OpUpdatePassword, "acc-1", Deny(ReasonNotOwner)},
		{"update profile - manager on other", manager, OpUpdateProfile, "acc-1", Deny(ReasonNotOwner)},
		{"update password - anonymous", anon, OpUpdatePassword, "", Deny(ReasonNotOwner)},
		{"signup - anonymous", anon, OpSignUp, "", Allow()},
		{"unknown operation", manager, Operation("deleteAll"), "", Deny(ReasonUnknownOperation)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Authorize(tt.principal, tt.op, tt.target))
		})
	}
}

func TestAuthorize_OverrideAppliesOnlyToMutations(t *testing.T) {
	admin := models.Principal{ID: "ops-1", Role: models.RoleStandard}
	e := NewEngine(NewOverrideSet("ops-1", ""))

	assert.True(t, e.Authorize(admin, OpUpdatePassword, "acc-1").Allowed)
	assert.True(t, e.Authorize(admin, OpUpdateProfile, "acc-1").Allowed)
	assert.Equal(t, Deny(ReasonInsufficientRole), e.Authorize(admin, OpListAll, ""))
	assert.Equal(t, Deny(ReasonNotOwner), e.Authorize(anon, OpUpdateProfile, "acc-1"))
}

func TestAuthorize_FirstMatchWins(t *testing.T) {
	calls := 0
	e := NewEngineWithRules([]Rule{
		{Name: "deny-profile", Applies: oneOf(OpUpdateProfile), Decide: func(Request) Decision {
			calls++
			return Deny(ReasonNotOwner)
		}},
		{Name: "allow-all", Applies: func(Operation) bool { return true }, Decide: func(Request) Decision {
			return Allow()
		}},
	})

	assert.False(t, e.Authorize(standard, OpUpdateProfile, "acc-1").Allowed)
	assert.True(t, e.Authorize(standard, OpListAll, "").Allowed)
	assert.Equal(t, 1, calls)
}

func TestAuthorize_EmptyEngineDenies(t *testing.T) {
	e := NewEngineWithRules(nil)
	assert.Equal(t, Deny(ReasonUnknownOperation), e.Authorize(manager, OpSignUp, ""))
}
