// Package permissions provides the pure role × regression-flag lookup that
// gates status transitions and approval resolution.
package permissions

import "github.com/caseflowhq/caseflow/pkg/models"

var allStageTypes = []models.StageType{
	models.StageTypeIntake,
	models.StageTypeScreening,
	models.StageTypeMatching,
	models.StageTypePostApproval,
	models.StageTypeArchive,
}

// forward is the allowed-stage-type set for non-regression moves.
var forward = map[models.Role][]models.StageType{
	models.RoleAdmin:     allStageTypes,
	models.RoleDeveloper: allStageTypes,
	models.RoleCaseManager: {
		models.StageTypeIntake,
		models.StageTypeScreening,
		models.StageTypeMatching,
	},
	models.RoleCoordinator: {
		models.StageTypeIntake,
		models.StageTypeScreening,
	},
	models.RoleViewer: {},
}

// backward is the allowed-stage-type set for regressions. Regressions still
// go through approval; this matrix only controls who may request them.
var backward = map[models.Role][]models.StageType{
	models.RoleAdmin:     allStageTypes,
	models.RoleDeveloper: allStageTypes,
	models.RoleCaseManager: {
		models.StageTypeIntake,
		models.StageTypeScreening,
	},
	models.RoleCoordinator: {
		models.StageTypeIntake,
	},
	models.RoleViewer: {},
}

// AllowedStageTypes returns the stage types the role may move an entity into.
func AllowedStageTypes(role models.Role, regression bool) []models.StageType {
	matrix := forward
	if regression {
		matrix = backward
	}

	types, ok := matrix[role]
	if !ok {
		return nil
	}

	return types
}

// Can reports whether the role may move an entity into a stage of the given
// type.
func Can(role models.Role, stageType models.StageType, regression bool) bool {
	for _, t := range AllowedStageTypes(role, regression) {
		if t == stageType {
			return true
		}
	}

	return false
}

// RequiresOwnership reports whether the role may only act on entities it
// owns.
func RequiresOwnership(role models.Role) bool {
	return role == models.RoleCaseManager
}

// CanResolveRequests reports whether the role may approve or reject pending
// status change requests.
func CanResolveRequests(role models.Role) bool {
	return role == models.RoleAdmin || role == models.RoleDeveloper
}
