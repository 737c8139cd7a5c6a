package errors

import "runtime"

// defaultCallerSkip skips captureStack, the constructor (New/Wrap) and
// runtime.Callers itself so the first frame points at the call site.
const defaultCallerSkip = 3

// maxStackDepth bounds the number of captured frames.
const maxStackDepth = 32

// StackFrame is a single frame of the call stack at error-creation time.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func captureStack(skip int) []StackFrame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]StackFrame, 0, n)
	for {
		frame, more := frames.Next()
		stack = append(stack, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more {
			break
		}
	}

	return stack
}
