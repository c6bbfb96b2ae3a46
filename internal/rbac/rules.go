package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"test:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"result:view-own",
	},
	"teacher": {
		"test:create",
		"test:publish",
		"test:view",
		"attempt:view-all",
		"result:view-all",
		"analytics:view",
	},
	"admin": {
		"*", // everything
	},
}
