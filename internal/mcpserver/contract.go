package mcpserver

// RecordFormatContract describes the canonical typed-record format that
// LLM consumers should follow when reading or proposing records.
const RecordFormatContract = `# Ansuz Record Format Contract

Every Markdown record stored in an Ansuz vault MUST follow this structure.

## Structure

` + "```" + `markdown
---
type: objective                     # REQUIRED - root discriminator
objective-type: task                # per-level discriminator (when the type has subtypes)
title: Human-readable title
status: active                      # selection fields must use a declared enum value
ideas:                              # link-format fields reference records as wikilinks
  - "[[Idea B]]"
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **The ` + "`" + `type` + "`" + ` discriminator is required** and must name a declared root
   type. Nested subtypes are tagged per level: a record of type
   ` + "`" + `objective/task` + "`" + ` carries ` + "`" + `type: objective` + "`" + ` and
   ` + "`" + `objective-type: task` + "`" + `.
3. **Only schema fields.** Every frontmatter key must exist in the resolved
   field set of the record's type (use the schema_type tool to inspect it).
4. **Wikilinks** use double brackets: ` + "`" + `[[Other Record]]` + "`" + `. The target is
   the file name stem, optionally path-qualified: ` + "`" + `[[folder/record]]` + "`" + `.
5. **Ownership is physical.** A record owned by another lives in the owner's
   child directory (` + "`" + `<owner>/<field>/` + "`" + `). Never reference an owned record
   from anywhere but its owner; use validate_records to check.
6. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
7. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
type: draft
title: Quarterly review
status: open
ideas:
  - "[[Faster onboarding]]"
---

# Quarterly review

Collect themes before planning.
` + "```" + `
`
