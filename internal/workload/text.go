package workload

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/me/coresim/pkg/model"
)

// ParseText reads the interactive format:
//
//	<policy number: 1 FCFS, 2 SJF, 3 RR, 4 MLQ>
//	<A> <B> <C>
//	<task count>
//	<name> <kind> <total>   (one line per task)
//
// Blank lines are ignored. Every problem is reported with its line number.
func ParseText(r io.Reader) (*model.Workload, error) {
	sc := bufio.NewScanner(r)
	lineNo := 0
	next := func() ([]string, bool) {
		for sc.Scan() {
			lineNo++
			if fields := strings.Fields(sc.Text()); len(fields) > 0 {
				return fields, true
			}
		}
		return nil, false
	}

	var (
		w    model.Workload
		errs []model.FieldError
	)
	fail := func(field, format string, args ...any) {
		errs = append(errs, model.FieldError{Field: field, Line: lineNo, Message: fmt.Sprintf(format, args...)})
	}
	done := func() (*model.Workload, error) {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read workload: %w", err)
		}
		return nil, &model.ValidationError{Errors: errs}
	}

	fields, ok := next()
	if !ok {
		fail("policy", "missing policy line")
		return done()
	}
	p, err := model.ParsePolicy(fields[0])
	if err != nil {
		fail("policy", "%v", err)
	}
	w.Policy = p

	fields, ok = next()
	if !ok {
		fail("resources", "missing resource line")
		return done()
	}
	if len(fields) < 3 {
		fail("resources", "want 3 capacities (A B C), got %d", len(fields))
	} else {
		caps := make([]int, 3)
		for i, name := range []string{"a", "b", "c"} {
			n, err := strconv.Atoi(fields[i])
			if err != nil || n < 0 {
				fail("resources."+name, "capacity %q is not a non-negative integer", fields[i])
				continue
			}
			caps[i] = n
		}
		w.Resources = model.Resources{A: caps[0], B: caps[1], C: caps[2]}
	}

	fields, ok = next()
	if !ok {
		fail("tasks", "missing task count line")
		return done()
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		fail("tasks", "task count %q is not a non-negative integer", fields[0])
		return done()
	}

	for i := 0; i < count; i++ {
		path := fmt.Sprintf("tasks[%d]", i)
		fields, ok = next()
		if !ok {
			fail("tasks", "expected %d tasks, got %d", count, i)
			break
		}
		if len(fields) < 3 {
			fail(path, "want <name> <kind> <total>, got %q", strings.Join(fields, " "))
			continue
		}
		kind, err := model.ParseKind(fields[1])
		if err != nil {
			fail(path+".kind", "%v", err)
		}
		total, err := strconv.Atoi(fields[2])
		if err != nil || total <= 0 {
			fail(path+".total", "total %q is not a positive integer", fields[2])
		}
		w.Tasks = append(w.Tasks, model.TaskSpec{Name: fields[0], Kind: kind, Total: total})
	}

	if len(errs) > 0 {
		return done()
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}
