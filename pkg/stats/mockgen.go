//go:build gomock || generate

package stats

//go:generate sh -c "go run go.uber.org/mock/mockgen -build_flags=\"-tags=gomock\" -package stats -destination mock_sampler_test.go github.com/kisy/netmole/pkg/monitor Sampler"
