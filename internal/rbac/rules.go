package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"assessment:view",
		"session:create",
		"session:save",
		"session:submit",
		"session:view-own",
		"result:view-own",
		"ranking:view",
		"user:change_password",
	},
	"author": {
		"assessment:view",
		"assessment:create",
		"assessment:update",
		"assessment:view-keys",
		"asset:upload",
		"session:view-all",
		"result:view-all",
		"ranking:view",
	},
	"admin": {
		"*", // everything
	},
}
