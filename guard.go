package session

// Decision is the outcome of evaluating a guarded route against a
// session snapshot.
type Decision int

const (
	// DecisionRender grants access to the target route.
	DecisionRender Decision = iota
	// DecisionRedirectLogin sends an unauthenticated visitor to login.
	DecisionRedirectLogin
	// DecisionRedirectHome sends an authenticated principal without the
	// required role back home.
	DecisionRedirectHome
)

func (d Decision) String() string {
	switch d {
	case DecisionRender:
		return "render"
	case DecisionRedirectLogin:
		return "redirect-login"
	case DecisionRedirectHome:
		return "redirect-home"
	default:
		return "unknown"
	}
}

// EvaluateRoute decides whether a route may render given the current
// session and the route's declared role requirement (empty means any
// authenticated principal). It is a pure function: no side effects, no
// network, evaluated synchronously on every navigation.
//
//	authenticated  requiredRole  role match   decision
//	no             any           -            redirect login
//	yes            none          -            render
//	yes            set           yes          render
//	yes            set           no           redirect home
func EvaluateRoute(s Session, requiredRole Role) Decision {
	if !s.IsAuthenticated() {
		return DecisionRedirectLogin
	}

	if requiredRole == "" {
		return DecisionRender
	}

	if RoleMatches(s.Role(), requiredRole) {
		return DecisionRender
	}

	return DecisionRedirectHome
}
