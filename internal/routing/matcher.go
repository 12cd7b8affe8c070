package routing

// Route classifies an incoming request path.
type Route string

const (
	RouteDiagnostic Route = "diagnostic"
	RouteIndex      Route = "index"
	RouteFile       Route = "file"
)

// Classify resolves an incoming path to a route. diagnosticPath is matched
// exactly; "/" is the index; everything else is a file reference.
func Classify(path, diagnosticPath string) Route {
	switch {
	case path == diagnosticPath:
		return RouteDiagnostic
	case path == "/" || path == "":
		return RouteIndex
	default:
		return RouteFile
	}
}
