// Package shatter is a typed API-description framework. An abstract API
// surface — named paths bound to method signatures — is declared separately
// from its implementation, composed by inheritance and extension, and
// dispatched through a middleware chain to the bound handler.
//
// Descriptors are declared as plain data and finalized explicitly:
//
//	users := shatter.NewDescriptor("UserAPI",
//	    shatter.Route("/users", "ListUsers", listSig),
//	)
//	err := users.Finalize() // merges base registries, detects conflicts
//
// Implementations attach concrete handlers and are bound once at startup:
//
//	impl := shatter.NewImplementation(users,
//	    shatter.Provide("ListUsers", listSig, listUsers),
//	)
//	mapping, err := impl.Bind()
//	resp, err := mapping.Dispatch("/users", req)
//
// Request models embed RequestBody, RequestHeaders, or RequestQueryParams
// markers; the call dispatcher decodes and validates them from the inbound
// RequestCtx, and a schema-validation failure becomes a structured 422
// response instead of an error.
//
// The framework does no networking itself. NewHandler adapts a bound mapping
// onto net/http for callers that want a transport.
package shatter
