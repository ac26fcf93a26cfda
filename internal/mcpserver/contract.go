package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when reading or writing note files directly.
const NoteFormatContract = `# Noteban Note Format

Every note is one Markdown file with YAML frontmatter. Noteban watches the
vault and re-reads files that change, so external edits are fine as long as
they keep this shape.

## Structure

` + "```" + `markdown
---
id: 4a6f9c2e-...                    # engine-assigned UUID; never invent or reuse one
title: Human-readable title
created: 2025-01-20T09:30:00Z       # RFC 3339; engine-assigned
modified: 2025-01-20T10:15:00Z      # RFC 3339; bumped on every engine write
date: 2025-01-20                    # OPTIONAL user-facing date label
column: todo                        # kanban lane id (todo, doing, done by default)
tags:
  - tag-one
  - tag-two
order: 0                            # rank within the column, ascending
---

Body text in standard Markdown.

Hashtags like #project-x in the body count as tags too, except inside
code fences and inline code spans.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "`" + `---` + "`" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **The engine owns ` + "`" + `id` + "`" + `, ` + "`" + `created` + "`" + `, and ` + "`" + `modified` + "`" + `.** Prefer the
   create_note tool, which fills them. A file dropped in without them gets
   values synthesized on the next scan.
3. **A tag starts with a letter**; digits, ` + "`" + `-` + "`" + ` and ` + "`" + `_` + "`" + ` may follow.
   Tags are matched case-insensitively.
4. **` + "`" + `column` + "`" + ` must name a lane** of the active profile's board; unknown
   values land in the default lane.
5. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes. Dotfiles and
   dot-directories are never scanned.
6. **Encoding** is UTF-8 with a trailing newline.

## Assets & Images

- Upload assets via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the note body.
- Assets are stored in the vault's ` + "`" + `attachments/` + "`" + ` directory (flat, no sub-folders).
- Reference in notes as ` + "`" + `![description](/attachments/filename.png)` + "`" + `.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.

## Example

` + "```" + `markdown
---
id: 7c3d1f7e-9a14-5b0c-8f14-2d1a32c0aa91
title: Weekly standup 2025-01-20
created: 2025-01-20T09:30:00Z
modified: 2025-01-20T09:30:00Z
column: doing
tags:
  - meeting-notes
order: 2
---

# Weekly standup 2025-01-20

Attendees: Alice, Bob.

![Whiteboard photo](/attachments/standup-2025-01-20.jpg)

Follow up on the #project-x rollout before Thursday.
` + "```" + `
`
