/*
Package authoring provides the Graph Builder used to construct and edit Scenario graphs.

Every operation either succeeds completely or leaves the graph untouched. Phase and condition
ids are dense (1..N): removing an entity shifts every later id down by one and rewrites all
transition lists and phase-condition rows accordingly.

Example usage:

	b := authoring.New("support call")

	greet, _ := b.AddCondition("greets the customer")
	welcome, _ := b.AddPhase("welcome")
	closure, _ := b.AddPhase("polite closure")

	_ = b.AttachCondition(welcome.ID, greet.ID)
	_ = b.AddTransition(welcome.ID, domain.TransitionSuccess, closure.ID)
	_ = b.SetClosure(closure.ID, true)

	scenario, advisories, err := b.Publish()
*/
package authoring
