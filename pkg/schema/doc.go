// Package schema validates the JSON payloads that cross the system boundary:
// interchange documents on import and verdicts returned by the evaluator.
//
// The schemas are embedded JSON Schema (draft 2020-12) documents compiled once at
// first use:
//
//	if err := schema.ValidateDocument(raw); err != nil {
//	    for _, v := range schema.ValidationErrors(err) {
//	        fmt.Println(v)
//	    }
//	}
//
// Structural rules that JSON Schema cannot express (dangling ids, reachability)
// belong to the graph validator, not here.
package schema
