// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package prompts

// Library contains all prompts served by the agent.
var Library = []PromptDef{
	TriageInterrupts,
	ExplainRingEntry,
	InvestigatePoison,
}

// TriageInterrupts walks a ring log through replay and the live counters.
var TriageInterrupts = PromptDef{
	Name:        "triage-gpu-interrupts",
	Description: "Replay interrupt ring traffic and summarize faults, poison and rejected records",
	Arguments: []ArgumentDef{
		{
			Name:        "path",
			Description: "Log file holding ring entries (defaults to the kernel log)",
			Default:     "the kernel log",
		},
	},
	Template: `## GPU Interrupt Triage

Triage the interrupt traffic recorded in {{path}}.

### Step 1: Replay

Call ` + "`analyze_ih_log`" + ` (leave ` + "`path`" + ` empty for the kernel log).
Report:
- entry count and admitted vs rejected records, by reason
- records dispatched per route (event_wake, sq_message, bad_opcode,
  sdma_trap, poison, vm_fault, fence_drain)
- the overall status (ok, degraded or critical)

### Step 2: Live counters

If ` + "`get_interrupt_stats`" + ` is offered, compare the replay with the
running engine. A non-zero ` + "`queue_full`" + ` count means records were
dropped before dispatch.

### Step 3: Findings

| Observation | Meaning |
|-------------|---------|
| poison result "escalated" | The owning process was killed and a GPU reset was requested |
| poison result "recovery_failed" | Reset request failed; the device needs attention |
| vm_fault records | A process touched an unmapped or protected page |
| vmid_range or partition rejections | Records from other VMIDs or partitions reached the ring |
| no_pasid or bogus_signal rejections | Records without a usable process or signal reached the ring |
| sq_message with error encoding | Shader hardware reported an EDC or memory violation |

### Expected Output

1. **Status:** one line (healthy, degraded or critical)
2. **Affected processes:** PASIDs with faults or poison
3. **Reset exposure:** blocks and reset modes that would be requested
4. **Next steps:** prioritized actions`,
}

// ExplainRingEntry decodes a single entry and explains each field.
var ExplainRingEntry = PromptDef{
	Name:        "explain-ring-entry",
	Description: "Decode one interrupt ring entry and explain what the driver would do with it",
	Arguments: []ArgumentDef{
		{
			Name:        "entry",
			Description: "Eight 32-bit words in hex, as printed by the driver",
			Required:    true,
		},
	},
	Template: `## Ring Entry Explanation

Decode this interrupt ring entry:

    {{entry}}

Call ` + "`decode_ih_entry`" + ` with the words above, then explain:

1. **Origin:** client and source id, VMID and PASID, and whether the
   record is a fence.
2. **Admission:** the filter verdict. If it was rejected, say which check
   failed. If the PASID was patched from the VMID mapping, note it.
3. **Route:** which handler the record reaches and what that handler does.
4. **Payload:** for SQ messages describe the encoding and decision; for
   bad opcodes the error code and doorbell; for VM faults the faulting
   virtual address.

Keep the answer short and quote the decoded fields you rely on.`,
}

// InvestigatePoison focuses on poison consumption for one process.
var InvestigatePoison = PromptDef{
	Name:        "investigate-poison",
	Description: "Investigate RAS poison consumption and the resulting reset for a process",
	Arguments: []ArgumentDef{
		{
			Name:        "pasid",
			Description: "PASID of the process to investigate (defaults to all)",
			Default:     "any process",
		},
		{
			Name:        "path",
			Description: "Log file holding ring entries (defaults to the kernel log)",
			Default:     "",
		},
	},
	Template: `## Poison Consumption Review

Investigate poison consumption for {{pasid}}.

Call ` + "`analyze_ih_log`" + ` with path "{{path}}" and
` + "`include_outcomes`" + ` set to true. For every poison event report:

- the consuming client and the RAS block it maps to
- the escalation result and requested reset mode
- whether the process was already being escalated when the record arrived

### Escalation results

| Result | Meaning |
|--------|---------|
| escalated | Process evicted and reset requested |
| already_escalating | A previous poison record already triggered recovery |
| already_marked | The RAS event was recorded by another path |
| no_process | No process owns the PASID |
| unsupported_client | The client cannot consume poison |
| recovery_failed | The reset request was rejected |

### Expected Output

State whether a reset is in progress or required, which process lost its
queues, and whether the hardware should be drained for inspection.`,
}

// GetPromptByName returns a prompt definition by name.
func GetPromptByName(name string) (*PromptDef, bool) {
	for i := range Library {
		if Library[i].Name == name {
			return &Library[i], true
		}
	}
	return nil, false
}

// GetAllPromptNames returns the names of all available prompts.
func GetAllPromptNames() []string {
	names := make([]string, len(Library))
	for i, p := range Library {
		names[i] = p.Name
	}
	return names
}
