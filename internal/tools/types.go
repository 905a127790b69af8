package tools

// Name identifies one external lookup tool.
type Name string

const (
	ToolDuckDuckGo     Name = "duckduckgo"
	ToolExa            Name = "exa"
	ToolSerper         Name = "serper"
	ToolGitHubUser     Name = "github_user"
	ToolGitHubRepo     Name = "github_repo"
	ToolGitHubOrg      Name = "github_org"
	ToolGitHubLanguage Name = "github_language"
	ToolArxiv          Name = "arxiv"
	ToolTavily         Name = "tavily"
)

// RollOutOrder is the canonical tool order for evidence assembly. Normalized
// text is concatenated in this order regardless of which tool call finished
// first, so identical output records always produce identical text.
var RollOutOrder = []Name{
	ToolDuckDuckGo,
	ToolExa,
	ToolSerper,
	ToolGitHubUser,
	ToolGitHubRepo,
	ToolGitHubOrg,
	ToolGitHubLanguage,
	ToolArxiv,
	ToolTavily,
}

// SearchResult is a generic title/link/snippet triple shared by the
// DuckDuckGo and Serper outputs.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type DuckDuckGoQuery struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type ExaQuery struct {
	Query              string `json:"query"`
	NumResults         int    `json:"num_results"`
	StartPublishedDate string `json:"start_published_date,omitempty"`
	EndPublishedDate   string `json:"end_published_date,omitempty"`
	Category           string `json:"category,omitempty"`
}

// ExaResult is one result with its highlight passages.
type ExaResult struct {
	Highlights []string `json:"highlights"`
	URL        string   `json:"url"`
}

type SerperQuery struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
	TBS        string `json:"tbs,omitempty"` // time filter, e.g. "qdr:w"
}

type SerperOutput struct {
	OrganicResults []SearchResult `json:"organic_results"`
}

type TavilyQuery struct {
	Query      string `json:"query"`
	Topic      string `json:"topic,omitempty"` // "news" | "general" | "finance"
	TimeRange  string `json:"time_range,omitempty"`
	MaxResults int    `json:"max_results"`
}

type TavilyItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type TavilyOutput struct {
	Results []TavilyItem `json:"results"`
}

type ArxivQuery struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k_results"`
	MaxDocs    int    `json:"load_max_docs"`
	MaxSummary int    `json:"doc_content_chars_max"`
}

type ArxivDoc struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Summary   string   `json:"summary"`
	Published string   `json:"published"`
}

type ArxivOutput struct {
	Results []ArxivDoc `json:"results"`
}

type GitHubUserQuery struct {
	Username string `json:"username"`
}

type GitHubUserOutput struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
	Bio         string `json:"bio"`
	Location    string `json:"location"`
}

type GitHubRepoQuery struct {
	FullName string `json:"full_name"` // e.g. "torvalds/linux"
}

type GitHubRepoOutput struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
}

type GitHubOrgQuery struct {
	OrgName     string `json:"org_name"`
	MemberLimit int    `json:"member_limit"`
}

type GitHubOrgOutput struct {
	Login       string   `json:"login"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PublicRepos int      `json:"public_repos"`
	Members     []string `json:"members"`
}

type GitHubLanguageQuery struct {
	Language string `json:"language"`
	Limit    int    `json:"limit"`
}

type GitHubLanguageItem struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Stars    int    `json:"stars"`
	URL      string `json:"url"`
}

type GitHubLanguageOutput struct {
	Results []GitHubLanguageItem `json:"results"`
}

// QueryRecord is the per-section query payload set: at most one payload per
// tool, nil when a tool is not requested. One closed record shape serves all
// classifications; the allow-list decides which fields the dispatcher honors.
type QueryRecord struct {
	DuckDuckGo     *DuckDuckGoQuery     `json:"duckduckgo_query,omitempty"`
	Exa            *ExaQuery            `json:"exa_query,omitempty"`
	Serper         *SerperQuery         `json:"serper_query,omitempty"`
	GitHubUser     *GitHubUserQuery     `json:"github_user_query,omitempty"`
	GitHubRepo     *GitHubRepoQuery     `json:"github_repo_query,omitempty"`
	GitHubOrg      *GitHubOrgQuery      `json:"github_org_query,omitempty"`
	GitHubLanguage *GitHubLanguageQuery `json:"github_language_query,omitempty"`
	Arxiv          *ArxivQuery          `json:"arxiv_query,omitempty"`
	Tavily         *TavilyQuery         `json:"tavily_query,omitempty"`
}

// IsEmpty reports whether no tool payload is present.
func (q QueryRecord) IsEmpty() bool {
	return q.DuckDuckGo == nil && q.Exa == nil && q.Serper == nil &&
		q.GitHubUser == nil && q.GitHubRepo == nil && q.GitHubOrg == nil &&
		q.GitHubLanguage == nil && q.Arxiv == nil && q.Tavily == nil
}

// Requested returns the tool names with a payload present, in roll-out order.
func (q QueryRecord) Requested() []Name {
	var out []Name
	for _, n := range RollOutOrder {
		if q.has(n) {
			out = append(out, n)
		}
	}
	return out
}

func (q QueryRecord) has(n Name) bool {
	switch n {
	case ToolDuckDuckGo:
		return q.DuckDuckGo != nil
	case ToolExa:
		return q.Exa != nil
	case ToolSerper:
		return q.Serper != nil
	case ToolGitHubUser:
		return q.GitHubUser != nil
	case ToolGitHubRepo:
		return q.GitHubRepo != nil
	case ToolGitHubOrg:
		return q.GitHubOrg != nil
	case ToolGitHubLanguage:
		return q.GitHubLanguage != nil
	case ToolArxiv:
		return q.Arxiv != nil
	case ToolTavily:
		return q.Tavily != nil
	}
	return false
}

// OutputRecord holds the normalized results from every tool that actually
// ran for one section. Sparse by tool: a nil field means the tool was not
// invoked or its call failed and was degraded to "no output".
type OutputRecord struct {
	DuckDuckGo     []SearchResult        `json:"duckduckgo_output,omitempty"`
	Exa            []ExaResult           `json:"exa_output,omitempty"`
	Serper         *SerperOutput         `json:"serper_output,omitempty"`
	GitHubUser     *GitHubUserOutput     `json:"github_user_output,omitempty"`
	GitHubRepo     *GitHubRepoOutput     `json:"github_repo_output,omitempty"`
	GitHubOrg      *GitHubOrgOutput      `json:"github_org_output,omitempty"`
	GitHubLanguage *GitHubLanguageOutput `json:"github_language_output,omitempty"`
	Arxiv          *ArxivOutput          `json:"arxiv_output,omitempty"`
	Tavily         *TavilyOutput         `json:"tavily_output,omitempty"`
}

// IsEmpty reports whether no tool produced output.
func (o OutputRecord) IsEmpty() bool {
	return o.DuckDuckGo == nil && o.Exa == nil && o.Serper == nil &&
		o.GitHubUser == nil && o.GitHubRepo == nil && o.GitHubOrg == nil &&
		o.GitHubLanguage == nil && o.Arxiv == nil && o.Tavily == nil
}
