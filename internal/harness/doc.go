// Package harness runs combine scenarios written in YAML.
//
// A scenario names an input function, the combiner configuration to run it
// with, and what must hold afterwards. Every scenario runs against a fresh
// in-memory run log with a fixed run ID, so its trace and output are
// reproducible and can be compared with golden files.
//
// # Scenario Format
//
//	name: mul_const_9
//	description: "x * 9 becomes (x << 3) + x"
//	target: aarch64
//	config:
//	  disable: [copy_prop]
//	  max_iterations: 100
//	input: |
//	  func @mul9 legalized {
//	    %0:s32 = ARG 0
//	    %1:s32 = G_CONSTANT 9
//	    %2:s32 = G_MUL %0, %1
//	    RET %2
//	  }
//	expect:
//	  status: fixpoint
//	  fired: [mul_const]
//	assertions:
//	  - type: no_opcode
//	    opcode: G_MUL
//	  - type: equivalent
//	    samples: [[0], [1], [-7]]
//
// # Assertion Types
//
//   - opcode_count: the output holds exactly count instructions with opcode
//   - no_opcode: the output holds no instruction with opcode
//   - fired: rule fired, exactly count times when count is given
//   - not_fired: rule never fired
//   - legal: every output instruction is in the target's legal set
//   - idempotent: combining the output again changes nothing
//   - equivalent: input and output evaluate alike on every sample
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/mul_const_9.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
