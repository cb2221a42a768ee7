// Package prompts holds the text AXIOM sends to language models.
//
// Each prompt lives next to an exported function that fills in its
// dynamic parts, so callers never format templates themselves and tests
// can check the interpolated result.
package prompts
