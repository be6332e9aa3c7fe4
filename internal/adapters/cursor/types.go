package cursor

import "time"

type promptBody struct {
	Text string `json:"text"`
}

type sourceBody struct {
	Repository string `json:"repository"`
	Ref        string `json:"ref,omitempty"`
}

type targetBody struct {
	BranchName   string `json:"branchName,omitempty"`
	URL          string `json:"url,omitempty"`
	PRURL        string `json:"prUrl,omitempty"`
	AutoCreatePR bool   `json:"autoCreatePr"`
}

type launchRequest struct {
	Prompt promptBody  `json:"prompt"`
	Model  string      `json:"model,omitempty"`
	Source sourceBody  `json:"source"`
	Target *targetBody `json:"target,omitempty"`
}

type followUpRequest struct {
	Prompt promptBody `json:"prompt"`
}

type agentResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    string      `json:"status"`
	Summary   string      `json:"summary"`
	Source    sourceBody  `json:"source"`
	Target    *targetBody `json:"target"`
	CreatedAt time.Time   `json:"createdAt"`
}

type idResponse struct {
	ID string `json:"id"`
}

type conversationMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type conversationResponse struct {
	ID       string                `json:"id"`
	Messages []conversationMessage `json:"messages"`
}

type modelsResponse struct {
	Models []string `json:"models"`
}

type repository struct {
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	Repository string `json:"repository"`
}

type repositoriesResponse struct {
	Repositories []repository `json:"repositories"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
