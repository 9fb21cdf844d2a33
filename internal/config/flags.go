package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const keyAnnotation = "config_key"

// AnnotateFlag records the config key a command flag overrides. Several
// commands may declare flags for the same key; only the running command's
// flags get bound, see BindFlags.
func AnnotateFlag(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, keyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// BindFlags binds every annotated flag in flags to its config key.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[keyAnnotation]
		if !ok || len(keys) == 0 || err != nil {
			return
		}
		err = v.BindPFlag(keys[0], f)
	})
	return err
}

// AddDetectorFlags declares the detector.* flags shared by the commands that
// run detection.
func AddDetectorFlags(flags *pflag.FlagSet) {
	flags.String("detector-type", DefaultDetectorType, "Detector backend: http, tcp or onnx")
	flags.String("detector-url", DefaultDetectorURL, "Endpoint of the HTTP recognizer")
	flags.String("detector-address", DefaultDetectorAddress, "host:port of the TCP recognizer sidecar")
	flags.Duration("detector-timeout", DefaultDetectorTimeout, "Timeout for a single recognizer call")
	flags.Int("detector-pool-size", 4, "Maximum open connections to the TCP recognizer")
	flags.String("model-path", DefaultModelPath, "Path to the ONNX slider model")
	flags.String("onnx-library-path", "", "Path to the onnxruntime shared library")
	flags.Int("input-size", DefaultInputSize, "Square input size of the ONNX model")
	flags.Float64("conf-threshold", DefaultConfThreshold, "Minimum score for an ONNX detection")

	AnnotateFlag(flags, "detector-type", "detector.type")
	AnnotateFlag(flags, "detector-url", "detector.url")
	AnnotateFlag(flags, "detector-address", "detector.address")
	AnnotateFlag(flags, "detector-timeout", "detector.timeout")
	AnnotateFlag(flags, "detector-pool-size", "detector.pool_size")
	AnnotateFlag(flags, "model-path", "detector.model_path")
	AnnotateFlag(flags, "onnx-library-path", "detector.library_path")
	AnnotateFlag(flags, "input-size", "detector.input_size")
	AnnotateFlag(flags, "conf-threshold", "detector.conf_threshold")
}
