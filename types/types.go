package types

import (
	"fmt"
	"time"
)

// TestStatus represents the possible outcomes of a test execution
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

// AnnotationKind classifies an annotated function inside a module.
type AnnotationKind string

const (
	AnnotationTest       AnnotationKind = "test"
	AnnotationTestSkip   AnnotationKind = "test-skip"
	AnnotationBeforeEach AnnotationKind = "before-each"
	AnnotationBeforeAll  AnnotationKind = "before-all"
	AnnotationAfterEach  AnnotationKind = "after-each"
	AnnotationAfterAll   AnnotationKind = "after-all"
)

// AnnotatedFunction is one (function name, annotation kind) pair reported by
// the scanner for a single module file.
type AnnotatedFunction struct {
	Name string
	Kind AnnotationKind
}

// TestRecord groups a module's annotated functions into their canonical slots.
// The four single-valued slots hold at most one function name each; Tests and
// Skipped preserve discovery order.
type TestRecord struct {
	BeforeEach string
	BeforeAll  string
	AfterEach  string
	AfterAll   string
	Tests      []string
	Skipped    []string
}

// IsEmpty reports whether the record holds no runnable or skipped tests.
func (r TestRecord) IsEmpty() bool {
	return len(r.Tests) == 0 && len(r.Skipped) == 0
}

// ModuleDescriptor identifies one discovered test module. It is immutable
// after discovery.
type ModuleDescriptor struct {
	File   string
	Name   string
	Record TestRecord
}

// TestCase is the unit of work handed to the executor: one test function plus
// the source snippets that bind and clean up its context. The snippets embed
// the module's serialized global context by value.
type TestCase struct {
	File              string
	Module            string
	Test              string
	BeforeEachSnippet string
	AfterEachSnippet  string
}

// TestResult captures the outcome of a single test invocation. It is never
// mutated after creation.
type TestResult struct {
	File     string
	Module   string
	Test     string
	Status   TestStatus
	Error    error // diagnostic for failed rows, nil otherwise
	Duration time.Duration
	Stdout   string // serialized return value of the invocation
}

func (r *TestResult) String() string {
	return fmt.Sprintf("%s %s/%s", r.Status, r.Module, r.Test)
}
