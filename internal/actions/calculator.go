package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/Brent1981/AIProject/internal/command"
	"github.com/Brent1981/AIProject/internal/prompts"
)

const allowedExprChars = "0123456789.+-*/() "

// SanitizeExpression drops every character outside digits, '.', the four
// operators, parentheses and spaces.
func SanitizeExpression(expr string) string {
	var sb strings.Builder
	for _, r := range expr {
		if strings.ContainsRune(allowedExprChars, r) {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

// Calculate sanitizes and evaluates an arithmetic expression. ** is
// exponentiation, right-associative and binding tighter than unary minus,
// and unary + is accepted. All numbers are floats, so 7/2 is 3.5.
// Integral results print without a decimal point.
func Calculate(expr string) (string, error) {
	clean := SanitizeExpression(expr)
	if clean == "" {
		return "", errors.New("expression is empty after sanitization")
	}

	celExpr, err := toCEL(clean)
	if err != nil {
		return "", fmt.Errorf("invalid expression %q: %w", clean, err)
	}

	env, err := calcEnv()
	if err != nil {
		return "", fmt.Errorf("create evaluator: %w", err)
	}
	ast, issues := env.Compile(celExpr)
	if issues != nil && issues.Err() != nil {
		return "", fmt.Errorf("invalid expression %q: %w", clean, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return "", fmt.Errorf("invalid expression %q: %w", clean, err)
	}
	out, _, err := prg.Eval(map[string]any{})
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", clean, err)
	}

	v, ok := out.Value().(float64)
	if !ok {
		return "", fmt.Errorf("expression %q is not numeric", clean)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "", fmt.Errorf("expression %q has no finite result", clean)
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// calcEnv is a CEL environment with pow(double, double) for **.
func calcEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Function("pow",
			cel.Overload("pow_double_double",
				[]*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.BinaryBinding(func(base, exp ref.Val) ref.Val {
					b, ok1 := base.(types.Double)
					e, ok2 := exp.(types.Double)
					if !ok1 || !ok2 {
						return types.NewErr("pow: operands must be numbers")
					}
					return types.Double(math.Pow(float64(b), float64(e)))
				}),
			),
		),
	)
}

var numberLiteral = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)

// exprParser rewrites a sanitized arithmetic expression into a fully
// parenthesized CEL expression with double literals.
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/") unary }
//	unary  = ("+" | "-") unary | power
//	power  = atom [ "**" unary ]
//	atom   = number | "(" expr ")"
type exprParser struct {
	src string
	pos int
}

func toCEL(expr string) (string, error) {
	p := &exprParser{src: expr}
	out, err := p.expr()
	if err != nil {
		return "", err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return "", fmt.Errorf("unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	return out, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// accept consumes tok if it comes next. A lone "*" is not accepted when
// it starts "**".
func (p *exprParser) accept(tok string) bool {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], tok) {
		return false
	}
	if tok == "*" && strings.HasPrefix(p.src[p.pos:], "**") {
		return false
	}
	p.pos += len(tok)
	return true
}

func (p *exprParser) expr() (string, error) {
	left, err := p.term()
	if err != nil {
		return "", err
	}
	for {
		op := ""
		switch {
		case p.accept("+"):
			op = "+"
		case p.accept("-"):
			op = "-"
		default:
			return left, nil
		}
		right, err := p.term()
		if err != nil {
			return "", err
		}
		left = "(" + left + " " + op + " " + right + ")"
	}
}

func (p *exprParser) term() (string, error) {
	left, err := p.unary()
	if err != nil {
		return "", err
	}
	for {
		op := ""
		switch {
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		default:
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return "", err
		}
		left = "(" + left + " " + op + " " + right + ")"
	}
}

func (p *exprParser) unary() (string, error) {
	switch {
	case p.accept("+"):
		return p.unary()
	case p.accept("-"):
		operand, err := p.unary()
		if err != nil {
			return "", err
		}
		return "(-" + operand + ")", nil
	}
	return p.power()
}

func (p *exprParser) power() (string, error) {
	base, err := p.atom()
	if err != nil {
		return "", err
	}
	if !p.accept("**") {
		return base, nil
	}
	exp, err := p.unary()
	if err != nil {
		return "", err
	}
	return "pow(" + base + ", " + exp + ")", nil
}

func (p *exprParser) atom() (string, error) {
	if p.accept("(") {
		inner, err := p.expr()
		if err != nil {
			return "", err
		}
		if !p.accept(")") {
			return "", errors.New("missing closing parenthesis")
		}
		return inner, nil
	}
	p.skipSpace()
	lit := numberLiteral.FindString(p.src[p.pos:])
	if lit == "" {
		if p.pos >= len(p.src) {
			return "", errors.New("unexpected end of expression")
		}
		return "", fmt.Errorf("unexpected %q at offset %d", p.src[p.pos:p.pos+1], p.pos)
	}
	p.pos += len(lit)
	return floatLiteral(lit), nil
}

// floatLiteral normalizes a number to a CEL double literal, since CEL
// will not mix int and double operands.
func floatLiteral(n string) string {
	if strings.HasPrefix(n, ".") {
		n = "0" + n
	}
	if strings.HasSuffix(n, ".") {
		n += "0"
	}
	if !strings.Contains(n, ".") {
		n += ".0"
	}
	return n
}

// Calculator evaluates calculator commands and has the model phrase the
// result.
type Calculator struct {
	gen    Generator
	logger *slog.Logger
}

// NewCalculator creates the calculator executor.
func NewCalculator(gen Generator, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{gen: gen, logger: logger.With("component", "calculator")}
}

func (c *Calculator) Execute(ctx context.Context, req *Request, cmd command.Command) (Result, error) {
	expr := cmd.String("expression")
	if expr == "" {
		return Result{}, errors.New("calculator action requires an expression")
	}

	value, err := Calculate(expr)
	if err != nil {
		c.logger.Info("calculation failed", "expression", expr, "error", err)
		return Result{Text: fmt.Sprintf("I had a problem calculating that. The error was: %v", err), Answer: true}, nil
	}

	answer, err := c.gen.Complete(ctx, prompts.CalculatorAnswerPrompt(req.Prompt, value), req.Model)
	if err != nil {
		c.logger.Warn("calculator answer failed", "error", err)
		return Result{Text: value, Answer: true}, nil
	}
	return Result{Text: strings.TrimSpace(answer), Answer: true}, nil
}
