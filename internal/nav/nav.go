// Package nav picks the dashboard navigation for a role.
package nav

import "github.com/emilythestrangee/forum-web/internal/models"

type Item struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

var adminItems = []Item{
	{Key: "admin-profile", Label: "Admin Profile", Path: "/dashboard/admin-profile"},
	{Key: "manage-users", Label: "Manage Users", Path: "/dashboard/manage-users"},
	{Key: "reported-comments", Label: "Reported Comments", Path: "/dashboard/reported-comments"},
	{Key: "make-announcement", Label: "Make Announcement", Path: "/dashboard/make-announcement"},
}

var userItems = []Item{
	{Key: "my-profile", Label: "My Profile", Path: "/dashboard/my-profile"},
	{Key: "add-post", Label: "Add Post", Path: "/dashboard/add-post"},
	{Key: "my-posts", Label: "My Posts", Path: "/dashboard/my-posts"},
}

// ForRole returns the navigation for role. Anything other than admin,
// including an unresolved role, gets the user navigation.
func ForRole(role models.Role) []Item {
	src := userItems
	if role.IsAdmin() {
		src = adminItems
	}
	out := make([]Item, len(src))
	copy(out, src)
	return out
}

// Home is where the dashboard lands for role.
func Home(role models.Role) string {
	if role.IsAdmin() {
		return adminItems[0].Path
	}
	return userItems[0].Path
}

// Allows reports whether path is part of role's dashboard.
func Allows(role models.Role, path string) bool {
	for _, it := range ForRole(role) {
		if it.Path == path {
			return true
		}
	}
	return false
}
