// Package interchange converts scenarios to and from the portable document format
// shared with persistence and chat runtimes:
//
//	{
//	  "scenario": {"name": "...", "system_prompt": "..."},
//	  "conditions": [{"id": 1, "description": "..."}],
//	  "phases": [{"id": 1, "name": "...", "system_prompt": "...", "success_phases": [2], "failure_phases": []}],
//	  "phase_conditions": [{"phase_id": 1, "conditions_id": 1}]
//	}
//
// Exports always carry dense 1..N ids. The optional entry_phase_id, per phase closure
// and red_flags fields are additive; documents without them still import, with closure
// inferred from the legacy phase naming convention.
package interchange
