package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	tiny "github.com/tinylang/tiny"
	"github.com/tinylang/tiny/ascii"
)

type args struct {
	scriptPath *string

	disasmOnly *bool

	stackSize    *int
	maxCallDepth *int
	maxObjects   *int

	entryFunc *string
}

func readArgs() *args {
	a := &args{
		scriptPath: flag.String("script", "", "Path to the Tiny source file"),

		disasmOnly: flag.Bool("disasm", false, "Print the compiled bytecode instead of running it"),

		stackSize:    flag.Int("stack-size", 0, "Operand stack size, 0 uses the built-in default"),
		maxCallDepth: flag.Int("max-call-depth", 0, "Maximum call depth, 0 uses the built-in default"),
		maxObjects:   flag.Int("max-objects", 0, "GC collection threshold, 0 uses the built-in default"),

		entryFunc: flag.String("call", "", "After running the top-level program, call this exported function"),
	}
	flag.Parse()
	return a
}

func main() {
	a := readArgs()

	path := *a.scriptPath
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		log.Fatal("tiny: no script given, use -script or pass a path")
	}

	src, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("tiny: %s", err)
	}

	state := tiny.NewState()

	if *a.stackSize > 0 {
		state.Config.SetInt("vm.stack_size", *a.stackSize)
	}
	if *a.maxCallDepth > 0 {
		state.Config.SetInt("vm.max_call_depth", *a.maxCallDepth)
	}
	if *a.maxObjects > 0 {
		state.Config.SetInt("vm.max_objects", *a.maxObjects)
	}

	if err := state.CompileString(string(src)); err != nil {
		fmt.Println(ascii.Color(ascii.DefaultTheme.Error, "%s", err))
		os.Exit(1)
	}
	bindStdlib(state)

	if *a.disasmOnly {
		fmt.Println(tiny.Disassemble(state.Program, ascii.DefaultTheme))
		return
	}

	t := state.NewThread()
	state.PrepareThread(t)
	if err := t.Run(); err != nil {
		fmt.Println(ascii.Color(ascii.DefaultTheme.Error, "%s", err))
		os.Exit(1)
	}

	if *a.entryFunc != "" {
		idx, ok := state.GetFunctionIndex(*a.entryFunc)
		if !ok {
			log.Fatalf("tiny: no function named `%s`", *a.entryFunc)
		}
		if _, err := t.CallFunction(idx, nil); err != nil {
			fmt.Println(ascii.Color(ascii.DefaultTheme.Error, "%s", err))
			os.Exit(1)
		}
	}
}
