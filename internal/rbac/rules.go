package rbac

// Simple default policy. Students run their own attempts; teachers get the
// supervisory and authoring surfaces on top.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:complete",
		"attempt:view-own",
		"user:identify",
	},
	"teacher": {
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:complete",
		"attempt:view-own",
		"user:identify",
		"attempts:list",
		"users:list",
		"question:create",
		"question:delete",
	},
	"admin": {
		"*", // everything
	},
}
