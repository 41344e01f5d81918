// Command gen-library writes a small sample scenario library to disk, built with the
// authoring API and stored through the Loam adapter exactly as `scenaria publish` would.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/scenaria/internal/logging"
	loamAdapter "github.com/aretw0/scenaria/pkg/adapters/loam"
	"github.com/aretw0/scenaria/pkg/authoring"
	"github.com/aretw0/scenaria/pkg/domain"
)

func main() {
	targetDir := "examples/library"
	if len(os.Args) > 1 {
		targetDir = os.Args[1]
	}

	// Ensure dir exists
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		panic(err)
	}

	fmt.Printf("Generating sample library in: %s\n", targetDir)

	lib, err := loamAdapter.OpenWritable(targetDir, loamAdapter.WithLogger(logging.NewNop()))
	check(err)

	sc := supportCall()
	published, violations, err := sc.Publish()
	check(err)
	for _, v := range violations {
		fmt.Println("advisory:", v.Message)
	}
	check(lib.Put(context.TODO(), "support-call", published))

	fmt.Println("Done. Verify contents in", targetDir)
}

// supportCall: greet, then either solve the problem or escalate; both end the call.
func supportCall() *authoring.Builder {
	b := authoring.New("Support call")
	check(b.SetScenario("Support call", "You are a customer whose internet has been down since yesterday."))
	check(b.AddRedFlag("The agent insults the customer"))

	greets := must(b.AddCondition("The agent greets the customer and gives their name"))
	asks := must(b.AddCondition("The agent asks for the account number"))
	fix := must(b.AddCondition("The agent proposes a concrete fix"))

	welcome := must(b.AddPhase("welcome"))
	diagnosis := must(b.AddPhase("diagnosis"))
	escalation := must(b.AddPhase("escalation"))
	solved := must(b.AddPhase("polite closure"))
	angry := must(b.AddPhase("abrupt closure"))

	check(b.SetPhaseField(welcome.ID, authoring.FieldSystemPrompt, "Be short and a little impatient."))
	check(b.SetPhaseField(diagnosis.ID, authoring.FieldSystemPrompt, "Describe the blinking router lights when asked."))
	check(b.SetPhaseField(escalation.ID, authoring.FieldSystemPrompt, "Demand to speak to a manager."))

	check(b.AttachCondition(welcome.ID, greets.ID))
	check(b.AttachCondition(diagnosis.ID, asks.ID))
	check(b.AttachCondition(diagnosis.ID, fix.ID))
	check(b.AttachCondition(escalation.ID, fix.ID))

	check(b.AddTransition(welcome.ID, domain.TransitionSuccess, diagnosis.ID))
	check(b.AddTransition(welcome.ID, domain.TransitionFailure, escalation.ID))
	check(b.AddTransition(diagnosis.ID, domain.TransitionSuccess, solved.ID))
	check(b.AddTransition(diagnosis.ID, domain.TransitionFailure, escalation.ID))
	check(b.AddTransition(escalation.ID, domain.TransitionSuccess, solved.ID))
	check(b.AddTransition(escalation.ID, domain.TransitionFailure, angry.ID))
	check(b.SetClosure(solved.ID, true))
	check(b.SetClosure(angry.ID, true))
	return b
}

func must[T any](v T, err error) T {
	check(err)
	return v
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
