package service

import (
	"context"
	"fmt"

	"github.com/louisbranch/cellarpool/internal/services/mcp/domain"
	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mcpRegistrationModule struct {
	name     string
	register func(*mcp.Server) error
}

const (
	mcpPoolCommandToolsModuleName = "pool-command-tools"
	mcpPoolQueryToolsModuleName   = "pool-query-tools"
	mcpContextToolsModuleName     = "context-tools"
	mcpPoolResourceModuleName     = "pool-resources"
	mcpContextResourceModuleName  = "context-resources"
)

func addTool[In, Out any](server *mcp.Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[In, Out]) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	if handler == nil {
		return fmt.Errorf("tool %q has no handler", tool.Name)
	}
	mcp.AddTool(server, tool, handler)
	return nil
}

func newMCPRegistrationModules(server *Server, client poolgrpc.PoolServiceClient, notify domain.ResourceUpdateNotifier) []mcpRegistrationModule {
	getContext := server.getContext
	return []mcpRegistrationModule{
		{
			name: mcpPoolCommandToolsModuleName,
			register: func(s *mcp.Server) error {
				return firstError(
					addTool(s, domain.PoolCreateTool(), domain.PoolCreateHandler(client, getContext, notify)),
					addTool(s, domain.PoolContributeTool(), domain.PoolContributeHandler(client, getContext, notify)),
					addTool(s, domain.PoolLockTool(), domain.PoolLockHandler(client, getContext, notify)),
					addTool(s, domain.PoolCancelTool(), domain.PoolCancelHandler(client, getContext, notify)),
					addTool(s, domain.PoolDistributeTool(), domain.PoolDistributeHandler(client, getContext, notify)),
					addTool(s, domain.PoolRefundTool(), domain.PoolRefundHandler(client, getContext, notify)),
					addTool(s, domain.PoolCheckExpiryTool(), domain.PoolCheckExpiryHandler(client, getContext, notify)),
				)
			},
		},
		{
			name: mcpPoolQueryToolsModuleName,
			register: func(s *mcp.Server) error {
				return firstError(
					addTool(s, domain.PoolGetTool(), domain.PoolGetHandler(client, getContext)),
					addTool(s, domain.PoolSharesTool(), domain.PoolSharesHandler(client, getContext)),
					addTool(s, domain.PoolListTool(), domain.PoolListHandler(client, getContext)),
					addTool(s, domain.PoolEventsTool(), domain.PoolEventsHandler(client, getContext)),
					addTool(s, domain.PoolVerifyJournalTool(), domain.PoolVerifyJournalHandler(client, getContext)),
				)
			},
		},
		{
			name: mcpContextToolsModuleName,
			register: func(s *mcp.Server) error {
				return addTool(s, domain.SetActorTool(), domain.SetActorHandler(server.setContext, getContext, notify))
			},
		},
		{
			name: mcpPoolResourceModuleName,
			register: func(s *mcp.Server) error {
				s.AddResource(domain.PoolListResource(), domain.PoolListResourceHandler(client, getContext))
				s.AddResourceTemplate(domain.PoolResourceTemplate(), domain.PoolResourceHandler(client, getContext))
				s.AddResourceTemplate(domain.PoolEventsResourceTemplate(), domain.PoolEventsResourceHandler(client, getContext))
				return nil
			},
		},
		{
			name: mcpContextResourceModuleName,
			register: func(s *mcp.Server) error {
				s.AddResource(domain.ContextResource(), domain.ContextResourceHandler(getContext))
				return nil
			},
		},
	}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// resourceNotifier forwards resource updates to subscribed clients.
func resourceNotifier(server *mcp.Server, logf func(string, ...any)) domain.ResourceUpdateNotifier {
	return func(ctx context.Context, uri string) {
		if ctx == nil {
			ctx = context.Background()
		}
		if err := server.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: uri}); err != nil {
			logf("mcp resource updated notify failed: uri=%s err=%v", uri, err)
		}
	}
}
