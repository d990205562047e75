package invoice

import (
	"github.com/mk070/zenlance-sub002/internal/invoice/repository"
	"github.com/mk070/zenlance-sub002/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
