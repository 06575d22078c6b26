// Package render writes constitutions as Markdown files with a YAML
// metadata header and parses them back.
//
// Every statement is rendered as a level-3 heading followed by a one-line
// metadata comment carrying its id, kind, source section and confidence:
//
//	### Hosts pay 10 per month
//	<!-- bpkit {id: business-model-hosts-pay, kind: principle, source: business-model, confidence: 0.8} -->
//
//	Hosts pay $10 per month for listing tools.
//
// The comment keeps statement ids stable when a constitution is edited by
// hand, which is what lets reverse sync match edited statements to the
// ones it recorded. Parse(Render(c)) reproduces c.
package render
