package ndep

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the plan as pseudo-code:
//
//	settings = state["settings"]
//	engine = createEngine(settings=settings)
//	with session = createSession(engine=engine):
//	    return listUsers(session=session)
func (p *Plan) String() string {
	vars := p.varNames()
	var lines []string
	indent := ""
	for i, step := range p.steps {
		switch step.Kind {
		case FromState:
			lines = append(lines, fmt.Sprintf("%s%s = state[%q]", indent, vars[i], step.StateName))
		case Invoke:
			call := step.Producer.Name() + "(" + p.renderArgs(step.Producer.params, step.Bindings, step.Key.Qualifier(), vars) + ")"
			if step.Producer.Scoped() {
				lines = append(lines, indent+"with "+vars[i]+" = "+call+":")
				indent += "    "
			} else {
				lines = append(lines, indent+vars[i]+" = "+call)
			}
		}
	}
	lines = append(lines, indent+"return "+p.target.Name()+"("+p.renderArgs(p.target.params, p.bindings, "", vars)+")")
	return strings.Join(lines, "\n")
}

func (p *Plan) renderArgs(params []Param, bindings []int, qualifier string, vars []string) string {
	args := make([]string, len(params))
	for i, param := range params {
		if bindings[i] == nameBinding {
			args[i] = param.Name + "=" + strconv.Quote(qualifier)
			continue
		}
		args[i] = param.Name + "=" + vars[bindings[i]]
	}
	return strings.Join(args, ", ")
}

func (p *Plan) varNames() []string {
	vars := make([]string, len(p.steps))
	used := make(map[string]int)
	for i, step := range p.steps {
		n := defaultParamName(step.Key.Type())
		if q := step.Key.Qualifier(); q != "" {
			n += "_" + q
		}
		used[n]++
		if used[n] > 1 {
			n += strconv.Itoa(used[n])
		}
		vars[i] = n
	}
	return vars
}

// DOT exports the plan as a Graphviz graph.  Edges point from a
// consumer to the step it depends on.
func (p *Plan) DOT() string {
	var b strings.Builder
	b.WriteString("digraph ndep {\n")
	b.WriteString("  rankdir=LR;\n")
	for i, step := range p.steps {
		label := step.Key.String()
		switch step.Kind {
		case FromState:
			label += "\\nstate " + strconv.Quote(step.StateName)
			b.WriteString(fmt.Sprintf("  n%d [label=\"%s\" shape=box];\n", i, escapeDOT(label)))
		case Invoke:
			label += "\\n" + step.Producer.Name()
			shape := "ellipse"
			if step.Producer.Scoped() {
				shape = "doubleoctagon"
			}
			b.WriteString(fmt.Sprintf("  n%d [label=\"%s\" shape=%s];\n", i, escapeDOT(label), shape))
		}
	}
	b.WriteString(fmt.Sprintf("  target [label=\"%s\" shape=house];\n", escapeDOT(p.target.Name())))
	for i, step := range p.steps {
		for _, slot := range step.Bindings {
			if slot == nameBinding {
				continue
			}
			b.WriteString(fmt.Sprintf("  n%d -> n%d;\n", i, slot))
		}
	}
	for _, slot := range p.bindings {
		b.WriteString(fmt.Sprintf("  target -> n%d;\n", slot))
	}
	b.WriteString("}\n")
	return b.String()
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
