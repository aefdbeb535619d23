package flow

// FixedRate triggers a launch plan every Value units.
type FixedRate struct {
	Value int    `json:"value" yaml:"value"`
	Unit  string `json:"unit" yaml:"unit"`
}

// Schedule triggers a launch plan periodically. The zero value means
// no schedule.
type Schedule struct {
	CronExpression      string     `json:"cron_expression,omitempty" yaml:"cron_expression,omitempty"`
	Rate                *FixedRate `json:"rate,omitempty" yaml:"rate,omitempty"`
	KickoffTimeInputArg string     `json:"kickoff_time_input_arg,omitempty" yaml:"kickoff_time_input_arg,omitempty"`
}

// Notification is delivered when an execution reaches one of Phases.
type Notification struct {
	Phases    []string `json:"phases" yaml:"phases"`
	Email     []string `json:"email,omitempty" yaml:"email,omitempty"`
	Slack     []string `json:"slack,omitempty" yaml:"slack,omitempty"`
	PagerDuty []string `json:"pager_duty,omitempty" yaml:"pager_duty,omitempty"`
}

// AuthRole is the identity executions run as.
type AuthRole struct {
	AssumableIAMRole         string `json:"assumable_iam_role,omitempty" yaml:"assumable_iam_role,omitempty"`
	KubernetesServiceAccount string `json:"kubernetes_service_account,omitempty" yaml:"kubernetes_service_account,omitempty"`
}

// LaunchPlanSpec is the serialized form of a launch plan.
type LaunchPlanSpec struct {
	WorkflowID    Identifier           `json:"workflow_id" yaml:"workflow_id"`
	DefaultInputs map[string]Parameter `json:"default_inputs" yaml:"default_inputs"`
	FixedInputs   map[string]Literal   `json:"fixed_inputs" yaml:"fixed_inputs"`
	Schedule      Schedule             `json:"schedule" yaml:"schedule"`
	Notifications []Notification       `json:"notifications" yaml:"notifications"`
	Labels        map[string]string    `json:"labels" yaml:"labels"`
	Annotations   map[string]string    `json:"annotations" yaml:"annotations"`
	AuthRole      AuthRole             `json:"auth_role" yaml:"auth_role"`
}
