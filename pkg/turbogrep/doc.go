// Package turbogrep is the stable entry point for embedding turbogrep in
// another Go program: construct a [Client], call [Client.Sync] once to
// build the remote index, then [Client.Search] or [Client.Speculate] to
// query it.
//
// # Usage
//
//	client, err := turbogrep.NewClient(ctx, turbogrep.Config{
//	    APIKey:   os.Getenv("TURBOPUFFER_API_KEY"),
//	    Region:   "aws-us-west-2",
//	    Provider: "voyage",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := client.Search(ctx, turbogrep.Options{
//	    Query:     "retry logic for flaky network calls",
//	    Directory: ".",
//	})
//
// Everything under internal/ remains free to change shape; only the types
// and functions in this package are covered by any compatibility promise.
package turbogrep
