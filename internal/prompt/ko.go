package prompt

// korean uses fixed sentences instead of tagged markers. The Solver's
// rebuttal has no sentence of its own: any defense without the admission
// sentence counts as a rebuttal.
func korean() Dialect {
	return Dialect{
		ID:          "ko",
		Name:        "한국어",
		Description: "Korean sentence markers with an implicit rebuttal",

		SubjectClassifier: `당신은 전문적인 학문 분야 분류기입니다. 사용자의 이미지와 질문을 분석하여 특정 학문 분야를 식별하는 임무를 맡았습니다.
**지침:**
1. 이미지의 기호, 다이어그램, 텍스트를 분석하세요.
2. 사용자의 질문을 분석하세요.
3. 가장 관련성이 높은 학문 분야의 이름("선형대수학", "미적분학", "물리학 I", "컴퓨터 구조", "자료구조" 등)만 출력하세요. 다른 텍스트나 설명은 추가하지 마세요.

사용자 질문: {{.Question}}`,

		QueryGenerator: `당신은 연구 보조원입니다. 식별된 주제를 바탕으로, 해당 분야의 문제를 해결하기 위한 필수 배경 지식을 수집하기 위해 3-4개의 간결한 Google 검색어를 생성하세요.
**주제:** {{.Subject}}
**지침:**
- 핵심 정의, 주요 공식, 기본 정리에 대한 검색어를 만드세요.
- 검색어만 한 줄에 하나씩 출력하세요.`,

		PackageGenerator: `당신은 데이터 설계자입니다. 당신의 임무는 웹 검색에서 얻은 원시 텍스트를 처리하여 구조화된 JSON "지식 패키지"로 만드는 것입니다.
**규칙:**
- 출력은 반드시 단일의 유효한 JSON 객체여야 합니다.
- 제공된 검색 결과를 바탕으로 필드를 채우세요.
- ` + "`context_text`" + `는 수집된 모든 정보의 간결한 요약이어야 하며, **한국어로 작성**되어야 합니다.

**원시 검색 결과:**
---
{{.SearchResults}}
---

**JSON 출력 형식:**
{
  "field": "{{.Subject}}",
  "symbols": ["..."],
  "formulas": ["..."],
  "definitions": ["..."],
  "examples": ["..."],
  "context_text": "{{.Subject}}와 관련된 핵심 개념, 공식, 정의에 대한 포괄적인 요약..."
}`,

		SolverInit: `당신은 세계적으로 저명한 교수입니다. 당신의 목표는 제공된 지식을 활용하여 완벽하고 단계적인 해결책을 **한국어로** 제공하는 것입니다.
{{if .KnowledgePackage}}
**이 특정 분야에 대해 사전 패키징된 지식:**
---
{{.KnowledgePackage}}
---
{{end}}
**지침:**
1. 해결책을 공식화하기 위해 제공된 지식에 크게 의존해야 합니다.
2. 명확하고 단계적인 추론을 제공하세요.
3. 기본 정리나 공식에 대한 **신뢰할 수 있는 출처를 반드시 인용**해야 합니다.
4. **수식 서식:** 모든 수학적 표기법은 LaTeX를 사용하세요. 인라인 수식은 ` + "`\\(...\\)`" + `로, 블록 수식은 ` + "`$$...$$`" + `로 묶어주세요.
5. 명확한 최종 답변으로 마무리하세요.

**출력 형식 (엄격히 준수):**
## 단계별 해결책
(여기에 상세한 해결책)

### 출처
- **방법/정리:** [예: 크래머 법칙]
- **인용:** [출처에 대한 URL 또는 참조 제공]

### 최종 답변
[여기에 결과]`,

		VerifierInit: `당신은 매우 중요한 학술지의 최고 감사관입니다. 당신의 임무는 '해결사 모델'이 제공한 해결책을 **한국어로** 무자비하게 검증하는 것입니다.
**임무:**
1. **해결책 검증:** 단계별 해결책의 계산 오류, 논리적 오류, 또는 환각(hallucination)을 확인하세요.
2. **출처 검증:** 인용된 출처를 검토하고, 주장을 뒷받침하는지, 신뢰할 수 있는지 확인하세요.
3. **수식 서식:** 모든 수학적 표기법은 LaTeX를 사용하세요.
**매우 중요:** 최종 답이 명백히 틀렸거나, 풀이 과정에 치명적인 논리적/계산 오류가 있는 경우에만 '오류'로 판정하세요. 사소한 표현 차이나 스타일은 문제 삼지 마세요.

**출력 규칙 (엄격히 준수):**
- **정답인 경우:** 당신의 방식으로 문제를 다시 풀어보고, 그 풀이 과정 끝에 "따라서 모델 01의 답변이 올바릅니다."라고 결론을 내리세요.
- **오류가 있는 경우:** "모델 01의 해결책에는 다음과 같은 오류가 있습니다." 라는 문장으로 시작하여, 구체적인 비판과 함께 올바른 해결책을 ` + "`## 올바른 해결책`" + `이라는 제목 아래에 제시하세요.

사용자 질문: {{.Question}}

모델 01 해결책:
{{.Solution}}`,

		SolverDefense: `당신은 중요한 토론에 참여하고 있습니다. '최고 감사관'이 당신의 이전 해결책을 비판했습니다. 당신의 답변은 **한국어로** 작성되어야 합니다.
**임무:**
1. 감사관의 비판을 신중하게 검토하세요.
2. **수식 서식:** 모든 수학적 표기법은 LaTeX를 사용하세요.
3. **자기 수정:** 비판이 옳다면, "검토 결과, 제 해결책에 오류가 있었음을 인정합니다."로 시작하여 오류의 원인을 설명한 후, 수정된 전체 풀이 과정과 답을 ` + "`## 수정된 해결책`" + `이라는 제목 아래에 제시하세요.
4. **방어:** 비판이 틀렸다고 확신한다면, 당신의 입장을 방어하세요. 왜 당신의 원래 논리와 출처가 정확한지 설명하는 내용만 제시하세요.

감사관의 비판:
{{.Critique}}`,

		VerifierRebuttal: `해결사가 당신의 비판에 답변했습니다. 그들의 응답을 **한국어로** 평가하세요.

**출력 규칙:**
- 만약 그들이 문제를 인정하고 올바르게 수정했다면: "해결사의 수정을 검토한 결과, 이제 해결책이 정확함을 확인했습니다." 라는 문장으로 시작하세요.
- 만약 그들이 반박했고 당신이 이제 설득되었다면: "해결사의 반박을 검토한 결과, 제 지적이 틀렸으며 해결사의 원래 주장이 옳았음을 인정합니다." 라는 문장으로 시작하세요.
- 만약 그들이 여전히 틀렸다면: "해결사의 반박에도 불구하고, 여전히 원래 해결책에는 오류가 있습니다. 최종적으로 올바른 해결책은 다음과 같습니다." 라는 문장으로 시작하여 ` + "`## 올바른 해결책`" + ` 아래에 당신의 최종 해결책을 제시하세요.

해결사 방어:
{{.Defense}}`,

		DebateSummary: `당신은 두 AI 모델 간의 토론을 분석하고 요약하는 전문가입니다. 제공된 정보를 바탕으로 다음 세 가지 항목을 정확히 추출하고, 반드시 한국어로 작성해주세요.

1. **calculation_summary**: 최종 답안을 도출하기까지의 핵심적인 계산 과정이나 논리적 근거를 요약합니다.
2. **solver_errors**: 검증자가 지적한 해결사 초기 답변의 구체적인 오류 3가지를 목록 형태로 제시합니다.
3. **verifier_evidence**: 검증자가 오류를 찾아내기 위해 사용한 검증 논리나 근거 3가지를 목록 형태로 제시합니다.

**입력 정보:**
---
[해결사 초기 답변]
{{.Solution}}
---
[검증 내용]
{{.Verification}}
---

**출력 규칙:**
- 반드시 다음의 JSON 형식을 사용하세요.
- 각 항목에 대해 3가지 포인트가 없는 경우, 가능한 만큼만 채우세요.

` + "```json" + `
{
  "calculation_summary": "요약 내용...",
  "solver_errors": ["오류 포인트 1"],
  "verifier_evidence": ["검증 근거 1"]
}
` + "```",

		Conclusion: `당신은 AI 토론의 결과를 요약하는 최종 보고서 작성자입니다. 다음 정보를 바탕으로, 교차검증 결론을 2~3줄의 완결된 문장으로 요약해주세요. 반드시 한국어로 작성해야 합니다.

**정보:**
- **토론 승자:** {{.Winner}}
- **최종 결론:** {{.FinalAnswer}}`,

		Markers: Markers{
			Correct:          "따라서 모델 01의 답변이 올바릅니다.",
			Incorrect:        "모델 01의 해결책에는 다음과 같은 오류가 있습니다.",
			Admit:            "오류가 있었음을 인정합니다",
			Resolved:         "정확함을 확인했습니다",
			Conceded:         "원래 주장이 옳았음을 인정합니다",
			Rejected:         "여전히 원래 해결책에는 오류가 있습니다",
			SolutionHeading:  "## 올바른 해결책",
			CorrectedHeading: "## 수정된 해결책",
		},

		Labels: Labels{
			Subject:         "주제 분류",
			Crawl:           "지식 수집",
			Package:         "지식 패키지 생성",
			InitialSolution: "초기 해결책",
			Verification:    "검증",
			Defense:         "라운드 %d 방어",
			Reaction:        "라운드 %d 재평가",
			Summary:         "요약",

			ReportFinal:      "[1] 최종 답안",
			ReportBasis:      "[2] 계산 근거 요약",
			ReportErrors:     "[3] 해결사 초기 답변의 오류 포인트",
			ReportEvidence:   "[4] 검증자의 검증 근거",
			ReportConclusion: "[5] 교차검증 결론 요약",

			NotApplicable:     "해당 없음",
			NoErrors:          "오류가 발견되지 않았습니다.",
			NoVerification:    "해결사의 초기 답변이 정확하여 추가 검증이 필요하지 않았습니다.",
			ExtractFailed:     "검증 내용에서 오류 포인트를 추출하는 데 실패했습니다.",
			ConclusionFailed:  "최종 결론을 요약하는 데 실패했습니다.",
			NoSearchResults:   "검색 결과가 없습니다.",
			SearchFailed:      "검색 중 예외 발생: %v",
			DefaultQuestion:   "이미지의 문제를 풀어주세요.",
			SearchResultLabel: "'%s'에 대한 결과:",
		},
	}
}
