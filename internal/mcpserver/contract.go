package mcpserver

// MetadataFormatContract describes the metadata file written next to every
// published notebook.
const MetadataFormatContract = `# nbpress Metadata Format

Every published notebook ` + "`<id>.ipynb`" + ` in the content store has a sibling
` + "`<id>.ipynb-meta`" + ` file. The id is the notebook file name without its suffix.

## Structure

One ` + "`Key: value`" + ` pair per line, UTF-8, in this order. Absent fields are omitted.

` + "```" + `
Title: Intro to arrays
Date: 2024-03-11 18:00
Modified: 2024-03-10 09:30
Category: python
Tags: python_package: numpy, python_package: os
Authors: Ramtin
Slug: intro_to_arrays
Summary: Intro to arrays A first look at ndarray.
` + "```" + `

## Fields

1. **Title** comes from the first heading of the notebook; without one it is the
   id with ` + "`_`" + ` and ` + "`-`" + ` replaced by spaces.
2. **Date** is when the page was first published. It never changes afterwards.
3. **Modified** is the notebook's modification time. Both timestamps use the
   layout ` + "`YYYY-MM-DD HH:MM`" + ` in local time, so edits within the same minute
   as the last publish are not picked up.
4. **Category** is the lowercased kernel language when it has a symbol extractor.
5. **Tags** is a comma-separated list of ` + "`<language>_package: <name>`" + ` entries,
   one per imported dependency, without duplicates.
6. **Authors** is comma-separated. Hand edits survive republishing.
7. **Slug** repeats the id; the page URL is ` + "`<slug>.html`" + `.
8. **Summary** is the first non-empty markdown cell with markup removed,
   flattened to one line.

Lines without a colon are reported and ignored. Unknown keys are ignored.
`
