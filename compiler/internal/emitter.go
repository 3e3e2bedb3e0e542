package internal

import (
	"bytes"
	"fmt"
	"io"
)

// Emitter renders a Program as URCL text, one instruction per line, in order. The
// header is the only part it adds.
type Emitter struct {
	config *Config
	output bytes.Buffer
}

func NewEmitter(config *Config) *Emitter {
	return &Emitter{config: config}
}

func (emitter *Emitter) writeOutput(line string) {
	emitter.output.WriteString(line)
	emitter.output.WriteByte('\n')
}

func (emitter *Emitter) writeInstructions(insts ...Instruction) {
	for _, inst := range insts {
		emitter.writeOutput(inst.String())
	}
}

// Emit returns the text of program.
func (emitter *Emitter) Emit(program *Program) string {
	emitter.output.Reset()
	if emitter.config.Header {
		emitter.writeHeader(program)
	}
	emitter.writeInstructions(program.Startup...)
	for _, fn := range program.Functions {
		emitter.writeInstructions(fn.Instructions()...)
	}
	return emitter.output.String()
}

func (emitter *Emitter) WriteTo(w io.Writer, program *Program) error {
	_, err := io.WriteString(w, emitter.Emit(program))
	return err
}

// MINREG counts R1 to R3.
func (emitter *Emitter) writeHeader(program *Program) {
	emitter.writeOutput(fmt.Sprintf("BITS %d", emitter.config.Bits))
	emitter.writeOutput("MINREG 3")
	emitter.writeOutput(fmt.Sprintf("MINHEAP %d", program.HeapWords))
	emitter.writeOutput(fmt.Sprintf("MINSTACK %d", emitter.config.MinStack))
}
