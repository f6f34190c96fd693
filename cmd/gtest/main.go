// gtest runs gsc against Markdown scenarios and golden files.
//
// Every case is compiled either by spawning the compiler and running the
// produced binary, or (with -simulate) in-process through the reference
// simulator, which needs neither nasm nor a linker.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/gsc/pkg/ast"
	"github.com/xplshn/gsc/pkg/config"
	"github.com/xplshn/gsc/pkg/driver"
	"github.com/xplshn/gsc/pkg/ir"
	"github.com/xplshn/gsc/pkg/scenario"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Outcome is the observable behaviour of one program, independent of how it
// was obtained. Golden files store exactly this.
type Outcome struct {
	Compiled bool   `json:"compiled"`
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout,omitempty"`
}

type CaseResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Compile  *Execution    `json:"compile,omitempty"`
	Run      *Execution    `json:"run,omitempty"`
	Outcome  *Outcome      `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration"`
}

type TestSuiteResults map[string]*CaseResult

// job is one unit of work for the pool: a program plus what it should do
type job struct {
	name   string
	source string
	hash   string
	expect *scenario.Case // scenario expectations
	golden string         // golden file path
}

var (
	compilerPath   = flag.String("compiler", "./gsc", "Path to the gsc binary to test.")
	compilerArgs   = flag.String("compiler-args", "", "Extra arguments for the compiler (space-separated).")
	scenarioFiles  = flag.String("scenarios", "testdata/*.md", "Glob pattern(s) for Markdown scenario files (space-separated).")
	testFiles      = flag.String("test-files", "tests/*.gs", "Glob pattern(s) for source files checked against golden files.")
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given source file.")
	simulate       = flag.Bool("simulate", false, "Compile in-process and run the reference simulator instead of native binaries.")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "gtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden, tempDir)
		return
	}

	handleRunTestSuite(tempDir)
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

func hashSource(src string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(src))
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func handleGenerateGolden(sourceFile, tempDir string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)

	content, err := os.ReadFile(sourceFile)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not read source file %s: %v\n", cRed, cNone, sourceFile, err)
	}
	src := string(content)
	outcome, _, _, err := evaluate(job{name: sourceFile, source: src, hash: hashSource(src)}, tempDir)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not generate golden file for %s: %v\n", cRed, cNone, sourceFile, err)
	}

	jsonData, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to marshal golden data to JSON: %v\n", cRed, cNone, err)
	}

	goldenFileName := getJSONPath(sourceFile)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Fatalf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, *jsonDir, err)
		}
	}
	if err := os.WriteFile(goldenFileName, jsonData, 0644); err != nil {
		log.Fatalf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, goldenFileName, err)
	}

	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, goldenFileName)
}

func handleRunTestSuite(tempDir string) {
	if !*simulate {
		if _, err := exec.LookPath(*compilerPath); err != nil {
			log.Fatalf("%s[ERROR]%s Compiler '%s' not found. Build it first or pass -simulate.\n", cRed, cNone, *compilerPath)
		}
	}

	allJobs, results := collectJobs()
	if len(allJobs) == 0 && len(results) == 0 {
		log.Println("No scenarios or test files found matching the pattern(s).")
		return
	}

	tasks := make(chan job, len(allJobs))
	resultsChan := make(chan *CaseResult, len(allJobs))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range tasks {
				resultsChan <- runJob(j, tempDir)
			}
		}()
	}

	for _, j := range allJobs {
		tasks <- j
	}
	close(tasks)
	wg.Wait()
	close(resultsChan)

	for result := range resultsChan {
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	printSummary(results)
	resultsMap := writeJSONReport(results)
	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

// collectJobs expands both globs. Programs whose source hashes the same as
// one already queued are skipped up front.
func collectJobs() ([]job, []*CaseResult) {
	var queued []job
	var skipped []*CaseResult
	seenHashes := make(map[string]string)

	enqueue := func(j job) {
		if original, seen := seenHashes[j.hash]; seen && j.expect == nil {
			skipped = append(skipped, &CaseResult{Name: j.name, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", original)})
			return
		}
		seenHashes[j.hash] = j.name
		queued = append(queued, j)
	}

	mdFiles, err := expandGlobPatterns(*scenarioFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	for _, md := range mdFiles {
		content, err := os.ReadFile(md)
		if err != nil {
			skipped = append(skipped, &CaseResult{Name: md, Status: "ERROR", Message: err.Error()})
			continue
		}
		cases, err := scenario.Extract(content)
		if err != nil {
			skipped = append(skipped, &CaseResult{Name: md, Status: "ERROR", Message: fmt.Sprintf("Bad scenario file: %v", err)})
			continue
		}
		for i := range cases {
			c := &cases[i]
			name := fmt.Sprintf("%s:%d %s", filepath.Base(md), c.Line, c.Name)
			// scenarios may share a program, so the name goes into the artifact key
			enqueue(job{name: name, source: c.Source, hash: hashSource(name + "\x00" + c.Source), expect: c})
		}
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	for _, file := range files {
		fileHash, err := hashFile(file)
		if err != nil {
			skipped = append(skipped, &CaseResult{Name: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)})
			continue
		}
		goldenFile := getJSONPath(file)
		if _, err := os.Stat(goldenFile); err != nil {
			skipped = append(skipped, &CaseResult{Name: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"})
			continue
		}
		content, _ := os.ReadFile(file)
		enqueue(job{name: file, source: string(content), hash: fileHash, golden: goldenFile})
	}
	return queued, skipped
}

func runJob(j job, tempDir string) *CaseResult {
	start := time.Now()
	outcome, compileExec, runExec, err := evaluate(j, tempDir)
	result := &CaseResult{Name: j.name, Compile: compileExec, Run: runExec, Outcome: outcome, Duration: time.Since(start)}
	if err != nil {
		result.Status, result.Message = "ERROR", err.Error()
		return result
	}

	var diag string
	if compileExec != nil {
		diag = compileExec.Stderr
	}

	switch {
	case j.expect != nil:
		checkScenario(result, j, outcome, diag)
	case j.golden != "":
		checkGolden(result, j, outcome)
	}
	return result
}

func checkScenario(result *CaseResult, j job, got *Outcome, diag string) {
	var diffs strings.Builder
	c := j.expect

	if c.CompileError != nil {
		if got.Compiled {
			diffs.WriteString(fmt.Sprintf("expected a compile error containing %q, but compilation succeeded\n", *c.CompileError))
		} else if !strings.Contains(diag, *c.CompileError) {
			diffs.WriteString(fmt.Sprintf("compile error mismatch:\n%s", cmp.Diff(*c.CompileError, strings.TrimSpace(diag))))
		}
	} else if !got.Compiled {
		diffs.WriteString(fmt.Sprintf("unexpected compile error:\n%s\n", diag))
	}

	if c.Exit != nil && got.Compiled && got.ExitCode != *c.Exit {
		diffs.WriteString(fmt.Sprintf("Exit Code mismatch:\n  - Want: %d\n  - Got:  %d\n", *c.Exit, got.ExitCode))
	}

	// The tree is only reachable in-process
	if c.AST != nil {
		_, prog, err := driver.Parse(j.source, nil)
		if err != nil {
			diffs.WriteString(fmt.Sprintf("ast: parse failed: %v\n", err))
		} else {
			if tree := ast.String(prog); tree != *c.AST {
				diffs.WriteString(fmt.Sprintf("AST mismatch:\n%s", cmp.Diff(*c.AST, tree)))
			}
			prog.Release()
		}
	}

	if diffs.Len() > 0 {
		result.Status, result.Message, result.Diff = "FAIL", "Scenario expectations not met", diffs.String()
		return
	}
	result.Status, result.Message = "PASS", "All expectations met"
}

func checkGolden(result *CaseResult, j job, got *Outcome) {
	data, err := os.ReadFile(j.golden)
	if err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Could not read golden file %s: %v", j.golden, err)
		return
	}
	var want Outcome
	if err := json.Unmarshal(data, &want); err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Could not parse golden file %s: %v", j.golden, err)
		return
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		result.Status, result.Message, result.Diff = "FAIL", "Outcome differs from golden file", diff
		return
	}
	result.Status, result.Message = "PASS", "Matches golden file"
}

// evaluate produces the outcome of one program, either natively or through
// the simulator. An error means the harness itself failed.
func evaluate(j job, tempDir string) (*Outcome, *Execution, *Execution, error) {
	if *simulate {
		return evaluateSimulated(j)
	}
	return evaluateNative(j, tempDir)
}

func evaluateSimulated(j job) (*Outcome, *Execution, *Execution, error) {
	start := time.Now()
	cfg := config.NewConfig()
	compileExec := &Execution{}

	_, prog, err := driver.Parse(j.source, nil)
	if err == nil {
		var irProg *ir.Program
		irProg, _, err = driver.Lower(prog, cfg, nil)
		if err == nil {
			compileExec.Duration = time.Since(start)
			status, simErr := ir.Simulate(irProg)
			if simErr != nil && !errors.Is(simErr, ir.ErrDivideByZero) {
				return nil, compileExec, nil, simErr
			}
			outcome := &Outcome{Compiled: true, ExitCode: ir.ExitCode(status)}
			if errors.Is(simErr, ir.ErrDivideByZero) {
				// SIGFPE, as a shell reports it
				outcome.ExitCode = 128 + 8
			}
			return outcome, compileExec, &Execution{ExitCode: outcome.ExitCode}, nil
		}
	}
	compileExec.Duration = time.Since(start)
	compileExec.Stderr = err.Error()
	compileExec.ExitCode = 1
	return &Outcome{Compiled: false}, compileExec, nil, nil
}

func evaluateNative(j job, tempDir string) (*Outcome, *Execution, *Execution, error) {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	srcPath := filepath.Join(tempDir, j.hash+".gs")
	if err := os.WriteFile(srcPath, []byte(j.source), 0644); err != nil {
		return nil, nil, nil, err
	}
	binaryPath := filepath.Join(tempDir, j.hash)
	asmPath := binaryPath + ".asm"

	args := []string{"-o", binaryPath, "-S", asmPath}
	args = append(args, strings.Fields(*compilerArgs)...)
	args = append(args, srcPath)

	compileExec := executeCommand(ctx, *compilerPath, args...)
	if compileExec.TimedOut {
		return nil, &compileExec, nil, fmt.Errorf("compiler timed out after %s", *timeout)
	}
	if compileExec.ExitCode != 0 {
		return &Outcome{Compiled: false}, &compileExec, nil, nil
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, &compileExec, nil, fmt.Errorf("compilation succeeded but binary was not created at %s", binaryPath)
	}

	runCtx, runCancel := context.WithTimeout(context.Background(), *timeout)
	defer runCancel()
	runExec := executeCommand(runCtx, binaryPath)
	if runExec.TimedOut {
		return nil, &compileExec, &runExec, fmt.Errorf("program timed out after %s", *timeout)
	}
	return &Outcome{Compiled: true, ExitCode: runExec.ExitCode, Stdout: runExec.Stdout}, &compileExec, &runExec, nil
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		execResult.TimedOut = true
		execResult.ExitCode = -1
	case errors.As(err, &exitErr):
		execResult.ExitCode = exitErr.ExitCode()
		if execResult.ExitCode == -1 {
			// killed by a signal
			execResult.ExitCode = 128 + signalNumber(exitErr)
		}
	case err != nil:
		execResult.ExitCode = -2
		execResult.Stderr += "\nExecution error: " + err.Error()
	}
	return execResult
}

func signalNumber(exitErr *exec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return int(ws.Signal())
	}
	return 0
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(results []*CaseResult) {
	var passed, failed, skipped, errored int
	var total time.Duration

	for _, result := range results {
		total += result.Duration
		if result.Status == "PASS" && !*verbose {
			passed++
			continue
		}
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.Name, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s [%s]\n", cGreen, cNone, result.Message, formatDuration(result.Duration))
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
	}

	mode := "native"
	if *simulate {
		mode = "simulated"
	}
	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary (%s):%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total in %s\n",
		cBold, mode, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results), strings.TrimSpace(formatDuration(total)))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*CaseResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.Name] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
