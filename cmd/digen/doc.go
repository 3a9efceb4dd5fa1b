// Command digen generates explicit registrations for the di container.
//
// digen keeps container wiring explicit while removing the boilerplate of
// writing token constants, Construct registrations, and typed accessors by
// hand:
//
//   - You write a small *.wire.json spec next to your composition root.
//   - You add a //go:generate ... directive in the owner Go file.
//   - digen generates a wiring file with:
//       - a Token constant per declared value and service
//       - RegisterGraph(scope) issuing explicit Construct registrations
//       - a typed accessor function per service
//
// There is no reflection and no annotation scanning. Generated registrations
// go through the container's normal resolver, so singleton caching, cycle
// detection and child-scope overrides behave exactly as for hand-written
// wiring: a test can still derive a child scope and override any generated
// token.
//
// When to use digen
//
// Use digen when a composition root registers more than a handful of services
// and the token-constant / Construct / accessor pattern becomes repetitive.
// Skip it for small graphs; hand-written registrations read fine.
//
// Spec format (*.wire.json)
//
// Minimal example:
//
//	{
//	  "package": "flashcards",
//	  "values": [
//	    { "name": "Config", "token": "config", "type": "*Config" }
//	  ],
//	  "services": [
//	    {
//	      "name": "Store", "token": "store", "type": "CardStore",
//	      "constructor": "OpenSQLiteStore", "lifetime": "singleton",
//	      "deps": ["Config"], "returnsError": true
//	    },
//	    {
//	      "name": "Reviewer", "token": "reviewer", "type": "*Reviewer",
//	      "constructor": "NewReviewer", "deps": ["Store"]
//	    }
//	  ]
//	}
//
// Values are tokens the graph consumes but does not construct; the caller
// registers them (typically scope.Constant) before resolving. Services are
// constructable nodes: constructor parameters are listed in Deps by declared
// name, in order. Lifetime is "singleton" (default), "scoped", or
// "transient". Constructors returning (T, error) set "returnsError": true.
//
// Typical go:generate usage
//
// Put this in the owner Go file (same package directory as the output):
//
//	//go:generate go run github.com/sghaida/codi/cmd/digen -spec ./graph.wire.json -out ./wiring.gen.go
//
// Then:
//
//	go generate ./...
//
// Generated API (summary)
//
//   - Token<Name> di.Token                  // per value and service
//   - RegisterGraph(scope *di.Scope) error  // explicit Construct registrations
//   - Resolve<Name>(scope *di.Scope) (<Type>, error) // typed accessor per service
//
// Imports in the generated file are copied from the owner file, so types
// referenced by the spec resolve with the owner's aliases; the di package
// import is appended when missing.
package main
