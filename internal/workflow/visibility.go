package workflow

// Visibility restricts which entities an actor may read.
type Visibility struct {
	All    bool
	Tenant string
	UserID string
}

// VisibilityFor returns the read scope of a. Tenant profiles see the tenant's
// entities, plain users their own untenanted ones, admins and the system everything.
func VisibilityFor(a *Actor) Visibility {
	switch {
	case a == nil:
		return Visibility{All: true}
	case a.TenantID() != "":
		return Visibility{Tenant: a.TenantID()}
	case a.User.Type == UserTypeUser:
		return Visibility{UserID: a.User.ID}
	default:
		return Visibility{All: true}
	}
}

// Allows reports whether e is inside the scope.
func (v Visibility) Allows(e *Entity) bool {
	switch {
	case v.All:
		return true
	case v.Tenant != "":
		return e.Tenant == v.Tenant
	default:
		return e.Tenant == "" && e.CreatedBy == v.UserID
	}
}

// Conditions returns SQL predicates for the scope and their arguments.
// alias prefixes the column names, e.g. "F.".
func (v Visibility) Conditions(alias string) ([]string, []interface{}) {
	switch {
	case v.All:
		return nil, nil
	case v.Tenant != "":
		return []string{alias + "TENANT = ?"}, []interface{}{v.Tenant}
	default:
		return []string{alias + "CREATED_BY = ?", alias + "TENANT IS NULL"}, []interface{}{v.UserID}
	}
}
