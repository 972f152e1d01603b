package a2a

// AgentCard describes this agent to A2A clients.
type AgentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	URL                string       `json:"url"`
	Version            string       `json:"version"`
	ProtocolVersion    string       `json:"protocolVersion"`
	PreferredTransport string       `json:"preferredTransport"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
	Capabilities       Capabilities `json:"capabilities"`
	Skills             []Skill      `json:"skills"`
}

// Capabilities lists optional protocol features.
type Capabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// Skill describes a single capability of the agent.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes"`
	OutputModes []string `json:"outputModes"`
}

// BuildAgentCard returns the card served at /.well-known/agent-card.json.
func BuildAgentCard(baseURL, version string) AgentCard {
	return AgentCard{
		Name:               "Careline",
		Description:        "Healthcare appointment intake assistant with medical triage and insurance verification",
		URL:                baseURL + "/a2a",
		Version:            version,
		ProtocolVersion:    "0.3.0",
		PreferredTransport: "JSONRPC",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain", "application/json"},
		Skills: []Skill{
			{
				ID:          "appointment-intake",
				Name:        "Appointment Intake",
				Description: "Collect patient details, run a triage assessment and book an appointment",
				Tags:        []string{"healthcare", "scheduling", "triage", "insurance"},
				Examples:    []string{"I'd like to book an appointment for my back pain"},
				InputModes:  []string{"text/plain"},
				OutputModes: []string{"text/plain", "application/json"},
			},
		},
	}
}
