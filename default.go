package ndep

// Default is the process-wide Injector used by the package-level
// functions.  It is created when the package is initialized and lives
// for the life of the process.  Code that needs isolation should
// create its own Injector with NewInjector.
var Default = MustNewInjector("default")

// Provide registers providers with the Default injector
func Provide(providers ...any) error { return Default.Provide(providers...) }

// MustProvide registers providers with the Default injector and
// panics on error
func MustProvide(providers ...any) { Default.MustProvide(providers...) }

// Register adds one producer to the Default injector
func Register(p *Producer) { Default.Register(p) }

// RequireState merges required state into the Default injector
func RequireState(required map[string]Key) error { return Default.RequireState(required) }

// SetRequiredState replaces the required state of the Default injector
func SetRequiredState(required map[string]Key) error { return Default.SetRequiredState(required) }

// SetProviders replaces the provider registry of the Default injector
func SetProviders(providers *ProviderRegistry) { Default.SetProviders(providers) }

// Inject builds a Function using the Default injector
func Inject(target any, paramNames ...string) (*Function, error) {
	return Default.Inject(target, paramNames...)
}

// MustInject builds a Function using the Default injector and panics
// on error
func MustInject(target any, paramNames ...string) *Function {
	return Default.MustInject(target, paramNames...)
}

// Run injects and calls a target using the Default injector
func Run(target any, state State, paramNames ...string) (any, error) {
	return Default.Run(target, state, paramNames...)
}
