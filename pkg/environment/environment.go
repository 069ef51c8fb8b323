package environment

import (
	"bytes"
	"os"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// DotEnvFileName is picked up from the working directory when present.
const DotEnvFileName = ".env"

// Environment holds service configuration loaded from the OS environment
// or defaults.
type Environment struct {
	Host                 string `env:"IMGSMITH_HOST,default=127.0.0.1"`
	Port                 int    `env:"IMGSMITH_PORT,default=8080"`
	UploadDir            string `env:"IMGSMITH_UPLOAD_DIR,default=uploads"`
	SessionTTLHours      int    `env:"IMGSMITH_SESSION_TTL_HOURS,default=24"`
	SweepIntervalMinutes int    `env:"IMGSMITH_SWEEP_INTERVAL_MINUTES,default=60"`
	Model                string `env:"IMGSMITH_MODEL,default=llava"`
	CORSOrigins          string `env:"IMGSMITH_CORS_ORIGINS,default=*"`
	Extras               env.EnvSet
}

// loadDotEnv merges a .env file into the process environment without
// overriding variables that are already set.
func loadDotEnv(fs afero.Fs, path string) error {
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return err
	}

	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}

	envMap, err := godotenv.Parse(bytes.NewReader(content))
	if err != nil {
		return err
	}

	for key, value := range envMap {
		if _, present := os.LookupEnv(key); !present {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}

	return nil
}

// NewEnvironment loads the service configuration, honoring a .env file in
// the working directory if one exists.
func NewEnvironment(fs afero.Fs) (*Environment, error) {
	if err := loadDotEnv(fs, DotEnvFileName); err != nil {
		return nil, err
	}

	environment := &Environment{}
	extras, err := env.UnmarshalFromEnviron(environment)
	if err != nil {
		return nil, err
	}
	environment.Extras = extras

	return environment, nil
}
