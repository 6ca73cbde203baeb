package pipeline

const analyzeSystemPrompt = `You are a product research analyst. You synthesize raw web research into structured competitive intelligence. Respond only with valid JSON matching the requested schema.`

const analyzePrompt = `Analyze the following research material about "%s".

Research material (%d extracted documents):
%s

Return a single JSON object with exactly these keys:
{
  "summary": "<2-3 sentence product summary>",
  "features": [{"name": "", "description": "", "category": ""}],
  "competitors": [{"name": "", "strengths": [], "weaknesses": [], "segment": ""}],
  "use_cases": ["<use case>"],
  "tech_stack": ["<technology>"],
  "swot": {"strengths": [], "weaknesses": [], "opportunities": [], "threats": []},
  "market_data": {"tam": "", "sam": "", "som": "", "growth_rate": "", "confidence": 0.0},
  "metrics": {"pricing_model": "", "price_points": [], "review_score": 0.0, "review_count": 0, "adoption_signal": ""},
  "confidence_score": 0.0,
  "data_gaps": ["<missing information>"]
}

Every key must be present. Use empty arrays or empty strings where the material offers nothing.`

const reportSystemPrompt = `You are a product research analyst writing final research reports in markdown. Write clear, structured prose grounded strictly in the supplied analysis. Never invent facts absent from it.`

const reportPrompt = `Write a product research report for "%s" in markdown.

Structured analysis (JSON):
%s

Sections, in order: Executive Summary, Features, Competitive Landscape, Use Cases, Technology, SWOT Analysis, Market Sizing, Business Metrics, Data Gaps.
Reference feature and competitor names exactly as they appear in the analysis.`
