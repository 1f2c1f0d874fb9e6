// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

// Built-in template names.
const (
	KeywordsExtraction     = "keywords_extraction"
	KeywordsExtractionJSON = "keywords_extraction_json"
	ColumnExtraction       = "column_extraction"
)

// KeywordsData fills the keyword extraction templates.
type KeywordsData struct {
	Query       string
	CurrentYear int
}

// ColumnData fills a survey table column template. Instruction is the column
// name turned into an extraction request unless a custom template replaces it.
type ColumnData struct {
	Column      string
	Instruction string
	Text        string
}

const keywordsExamples = `Example1:
User Query: "I need papers from author Michael Smith on machine learning published between 2019 and 2021."
Keywords: ['machine learning']
Year Range: [2021, 2020, 2019]
Authors: ['Michael Smith']
Institutions: []
Conferences: []

Example2:
User Query: "Find publications related to neural networks in CVPR or ICCV conferences."
Keywords: ['neural networks']
Year Range: []
Authors: []
Institutions: []
Conferences: ['CVPR', 'ICCV']

Example3:
User Query: "I want studies by Alice Johnson and Bob Lee from Stanford University from the last five years."
Keywords: []
Year Range: {{yearsBack .CurrentYear 5}}
Authors: ['Alice Johnson', 'Bob Lee']
Institutions: ['Stanford University']
Conferences: []

Example4:
User Query: "Search for papers on quantum computing by authors from MIT and Caltech presented at QIP from 2018 to 2020."
Keywords: ['quantum computing']
Year Range: [2020, 2019, 2018]
Authors: []
Institutions: ['MIT', 'Caltech']
Conferences: ['QIP']
`

var builtins = map[string]string{
	KeywordsExtraction: `Instruction:
You are assisting a researcher who needs to find academic papers. Extract key search parameters into well-organized categories based on the researcher's query. If the query mentions relative dates, count from the current year, which is {{.CurrentYear}}. Present the findings as a structured list, one category per line, exactly as in the examples.

` + keywordsExamples + `
New Task:
User Query: {{.Query}}
`,

	KeywordsExtractionJSON: `Instruction:
You are assisting a researcher who needs to find academic papers. Extract key search parameters from the researcher's query. If the query mentions relative dates, count from the current year, which is {{.CurrentYear}}.

Respond with a single JSON object and nothing else, using exactly these fields:
{"keywords": [string], "year_range": [integer], "authors": [string], "institutions": [string], "conferences": [string]}
Use an empty array for any category the query does not mention. The examples below show the categories in list form.

` + keywordsExamples + `
New Task:
User Query: {{.Query}}
`,

	ColumnExtraction: `You are reading the body of an academic paper to fill one cell of a survey table.
{{.Instruction}}
Answer with a short phrase or at most two sentences. If the paper does not provide it, answer "N/A".

Paper body:
{{.Text}}
`,
}
