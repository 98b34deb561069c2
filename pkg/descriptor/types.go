package descriptor

// Descriptor versions understood by the built-in rule trees.
const (
	VersionV5 = "v5"
	VersionV6 = "v6"

	// DefaultVersion applies to descriptors that do not declare descriptorVersion.
	DefaultVersion = VersionV5
)

// Bundle types.
const (
	BundleTypeStandard    = "bundle"
	BundleTypeSystemLevel = "system-level-bundle"
)

// Component stacks.
const (
	StackSpringBoot = "spring-boot"
	StackNode       = "node"
	StackReact      = "react"
	StackAngular    = "angular"
	StackCustom     = "custom"
)

// Micro-frontend types.
const (
	MicroFrontendWidget       = "widget"
	MicroFrontendAppBuilder   = "app-builder"
	MicroFrontendWidgetConfig = "widget-config"
)

// API claim types.
const (
	ClaimInternal = "internal"
	ClaimExternal = "external"
)

// Bundle is a validated bundle descriptor.
type Bundle struct {
	Name              string          `json:"name" yaml:"name"`
	Version           string          `json:"version" yaml:"version"`
	DescriptorVersion string          `json:"descriptorVersion,omitempty" yaml:"descriptorVersion,omitempty"`
	Type              string          `json:"type,omitempty" yaml:"type,omitempty"`
	Description       string          `json:"description,omitempty" yaml:"description,omitempty"`
	Thumbnail         string          `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	Svc               []string        `json:"svc,omitempty" yaml:"svc,omitempty"`
	Microservices     []Microservice  `json:"microservices,omitempty" yaml:"microservices,omitempty"`
	MicroFrontends    []MicroFrontend `json:"microfrontends,omitempty" yaml:"microfrontends,omitempty"`
}

// Microservice is a backend component of a bundle.
type Microservice struct {
	Name            string       `json:"name" yaml:"name"`
	Stack           string       `json:"stack" yaml:"stack"`
	DBMS            string       `json:"dbms,omitempty" yaml:"dbms,omitempty"`
	HealthCheckPath string       `json:"healthCheckPath,omitempty" yaml:"healthCheckPath,omitempty"`
	IngressPath     string       `json:"ingressPath,omitempty" yaml:"ingressPath,omitempty"`
	Version         string       `json:"version,omitempty" yaml:"version,omitempty"`
	Commands        *Commands    `json:"commands,omitempty" yaml:"commands,omitempty"`
	Env             []EnvVar     `json:"env,omitempty" yaml:"env,omitempty"`
	Roles           []string     `json:"roles,omitempty" yaml:"roles,omitempty"`
	Permissions     []Permission `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Resources       *Resources   `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// Commands overrides the lifecycle commands of a custom-stack component.
type Commands struct {
	Build string `json:"build,omitempty" yaml:"build,omitempty"`
	Run   string `json:"run,omitempty" yaml:"run,omitempty"`
	Pack  string `json:"pack,omitempty" yaml:"pack,omitempty"`
}

// EnvVar is an environment variable with either a literal value or a secret reference.
type EnvVar struct {
	Name         string        `json:"name" yaml:"name"`
	Value        string        `json:"value,omitempty" yaml:"value,omitempty"`
	SecretKeyRef *SecretKeyRef `json:"secretKeyRef,omitempty" yaml:"secretKeyRef,omitempty"`
}

// SecretKeyRef points at a key inside a platform secret.
type SecretKeyRef struct {
	Name string `json:"name" yaml:"name"`
	Key  string `json:"key" yaml:"key"`
}

// Permission grants a role of another client to a microservice.
type Permission struct {
	ClientID string `json:"clientId" yaml:"clientId"`
	Role     string `json:"role" yaml:"role"`
}

// Resources are the container resource requests of a microservice.
type Resources struct {
	CPU     string `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Memory  string `json:"memory,omitempty" yaml:"memory,omitempty"`
	Storage string `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// MicroFrontend is a frontend component. Which fields apply depends on Type.
type MicroFrontend struct {
	Name          string            `json:"name" yaml:"name"`
	Stack         string            `json:"stack" yaml:"stack"`
	Type          string            `json:"type" yaml:"type"`
	Group         string            `json:"group" yaml:"group"`
	CustomElement string            `json:"customElement" yaml:"customElement"`
	Titles        map[string]string `json:"titles,omitempty" yaml:"titles,omitempty"`
	PublicFolder  string            `json:"publicFolder,omitempty" yaml:"publicFolder,omitempty"`
	APIClaims     []APIClaim        `json:"apiClaims,omitempty" yaml:"apiClaims,omitempty"`
	Commands      *Commands         `json:"commands,omitempty" yaml:"commands,omitempty"`

	// widget
	ContextParams []string `json:"contextParams,omitempty" yaml:"contextParams,omitempty"`
	Params        []Param  `json:"params,omitempty" yaml:"params,omitempty"`
	ConfigMfe     string   `json:"configMfe,omitempty" yaml:"configMfe,omitempty"`

	// app-builder
	Slot  string    `json:"slot,omitempty" yaml:"slot,omitempty"`
	Paths []string  `json:"paths,omitempty" yaml:"paths,omitempty"`
	Nav   []NavItem `json:"nav,omitempty" yaml:"nav,omitempty"`
}

// Param is a configurable widget parameter.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// NavItem is an app-builder menu entry.
type NavItem struct {
	Label  map[string]string `json:"label" yaml:"label"`
	Target string            `json:"target" yaml:"target"`
	Type   string            `json:"type" yaml:"type"`
}

// APIClaim declares that a micro-frontend calls a microservice API.
type APIClaim struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	ServiceName string `json:"serviceName" yaml:"serviceName"`
	Bundle      string `json:"bundle,omitempty" yaml:"bundle,omitempty"`
}

// ComponentNames returns the names of every microservice and micro-frontend
// in declaration order.
func (b *Bundle) ComponentNames() []string {
	names := make([]string, 0, len(b.Microservices)+len(b.MicroFrontends))
	for _, ms := range b.Microservices {
		names = append(names, ms.Name)
	}
	for _, mfe := range b.MicroFrontends {
		names = append(names, mfe.Name)
	}
	return names
}

// Microservice returns the microservice with the given name.
func (b *Bundle) Microservice(name string) (*Microservice, bool) {
	for i := range b.Microservices {
		if b.Microservices[i].Name == name {
			return &b.Microservices[i], true
		}
	}
	return nil, false
}
