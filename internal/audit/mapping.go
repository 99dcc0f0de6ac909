package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute maps an HTTP method and route path (e.g. "DELETE", "/v1/devices/:id") to an
// audit action and resource. The resource is the first path segment after the version;
// sub-resources are joined with an underscore ("/v1/factors/totp/confirm" -> factors_totp).
func ParseRoute(method, path string) ActionResource {
	segs := make([]string, 0, 4)
	for _, s := range strings.Split(strings.Trim(path, "/"), "/") {
		if s == "" || strings.HasPrefix(s, ":") || s == "v1" {
			continue
		}
		segs = append(segs, strings.ReplaceAll(s, "-", "_"))
	}
	if len(segs) == 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}

	resource := segs[0]
	verb := ""
	if len(segs) > 1 {
		last := segs[len(segs)-1]
		if isVerb(last) {
			verb = last
			segs = segs[:len(segs)-1]
		}
		if len(segs) > 1 {
			resource = segs[0] + "_" + segs[1]
		}
	}
	if verb != "" {
		return ActionResource{Action: verb, Resource: resource}
	}
	return ActionResource{Action: methodToAction(method, path), Resource: resource}
}

func isVerb(s string) bool {
	switch s {
	case "confirm", "resend", "recheck", "abort", "verify", "answer", "send_code", "refresh", "logout", "login", "signup":
		return true
	}
	return false
}

func methodToAction(method, path string) string {
	switch strings.ToUpper(method) {
	case "GET":
		if strings.HasSuffix(path, "/:id") {
			return "get"
		}
		return "list"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
