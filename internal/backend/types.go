package backend

// Section groups equipment on the dashboard
type Section string

const (
	SectionCardio Section = "Cardio"
	SectionWeight Section = "Weight"
)

// Sections lists sections in display order
var Sections = []Section{SectionCardio, SectionWeight}

// EquipmentRecord is one piece of gym equipment as reported by the backend.
// Name is the identity.
type EquipmentRecord struct {
	Name      string  `json:"name"`
	Section   Section `json:"section"`
	Total     int     `json:"total"`
	Available int     `json:"available"`
}

// Occupancy is the gym-count sensor reading
type Occupancy struct {
	PeopleInGym int `json:"people_in_gym"`
}

// TokenInfo is the validate-token response. Pro tokens report Type,
// admin tokens report UserID.
type TokenInfo struct {
	Valid  bool   `json:"valid"`
	Type   string `json:"type,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// Known values in TokenInfo
const (
	TokenTypePro = "pro"
	AdminUserID  = "admin_user"
)

type tokenRequest struct {
	Token string `json:"token"`
}

type updateRequest struct {
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
}

type suggestionRequest struct {
	Prompt string `json:"prompt"`
}

type suggestionResponse struct {
	Suggestion string `json:"suggestion"`
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type upgradeRequest struct {
	Code string `json:"code"`
}

type upgradeResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}
