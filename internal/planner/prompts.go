package planner

// classificationPrompt asks the model to label the request with exactly one
// routing token. The token vocabulary is part of the LLM-facing contract.
const classificationPrompt = `Classify this coding request into exactly one task type.

User request:
%s

Respond with ONLY one of these tokens (no other text):
- executeAnalysisTask: the user wants code explained, reviewed, or investigated, with no changes
- executeGenerationTask: the user wants code written or modified, with no prior investigation needed
- executeAnalysisWithGeneration: the user wants changes that require understanding existing code first
- handleIrrelevantQuery: the request is not about code or software at all`

// decompositionPrompt asks the model to emit a full dependency-linked plan.
const decompositionPrompt = `Break this coding request into ordered subtasks.

User request:
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "plan": "One-paragraph summary of the approach",
  "subTasks": [
    {
      "id": "short-unique-id",
      "type": "analysis|generation|test",
      "description": "What this subtask covers",
      "task": "The concrete instruction for the subtask",
      "dependsOn": ["id of prerequisite subtask"]
    }
  ]
}

Guidelines:
- type must be one of: analysis, generation, test
- analysis subtasks investigate and explain; generation subtasks write or modify code; test subtasks verify
- dependsOn lists ids of subtasks whose results this one needs; use [] when there are none
- Keep the plan small: only split work that genuinely needs separate steps
- Order subTasks so prerequisites come before the subtasks that depend on them`
