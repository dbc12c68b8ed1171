// Package taskhub provides the identity backbone for the Taskhub application:
// pluggable login providers that produce a single normalized identity, signed
// session tokens, and a portable encrypted user token that can be read without
// a session-store lookup.
//
// Functionality is composed from plugins. An application registers the plugins
// it needs and calls Init, which wires dependencies and validates
// configuration:
//
//	reg := &taskhub.Registry{}
//	reg.Register(
//		storage.Plugin(memstore.New()),
//		auth.Plugin(),
//		telegram.Plugin(),
//		usertoken.Plugin(),
//	)
//	if err := reg.Init(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Request handling code then derives a context via taskhub.NewContext, which
// carries the external address and any request scoped configuration that
// plugins have registered.
package taskhub
