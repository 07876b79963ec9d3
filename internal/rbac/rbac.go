package rbac

import "github.com/scoutlink/backend/internal/models"

// Permission constants
const (
	PermRequestEvaluation = "request_evaluation"
	PermGiftEvaluation    = "gift_evaluation"
	PermReviewEvaluation  = "review_evaluation"
	PermReceivePayout     = "receive_payout"
	PermProcessPayouts    = "process_payouts"
	PermViewAuditLog      = "view_audit_log"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	models.RolePlayer: {
		PermRequestEvaluation,
	},
	models.RoleParent: {
		PermRequestEvaluation,
	},
	models.RoleScout: {
		PermGiftEvaluation, PermReviewEvaluation, PermReceivePayout,
		// Scouts CANNOT request paid evaluations of themselves or others.
	},
	models.RoleHighSchool: {},
	models.RoleAdmin: {
		PermProcessPayouts, PermViewAuditLog,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsFinancialOperation checks if permission moves money (admin or payee only).
func IsFinancialOperation(permission string) bool {
	return permission == PermProcessPayouts || permission == PermReceivePayout
}
