// Package bootstrap assembles the application handle.
//
// Assembly runs once, sequentially, in a fixed order: resolve the named
// configuration, initialize logging, create the router, bind the database,
// bind the key-value store, attach CSRF protection and the session store, and
// finally register routing modules. Modules receive the populated resources
// as an argument, so none of them can observe an unbound handle.
//
// Usage:
//
//	app, err := bootstrap.Assemble(ctx, "production")
//	if err != nil {
//	    fmt.Fprintf(os.Stderr, "%v\n", err)
//	    os.Exit(1)
//	}
//	defer app.Close()
//
//	if err := app.Serve(ctx); err != nil {
//	    app.Sugar.Errorw("Server stopped", "error", err)
//	}
package bootstrap
