package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/progprogect/erp-shvedoff-sub000/internal/application/allocator"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/analyzer"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/dto"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/ledger"
	"github.com/progprogect/erp-shvedoff-sub000/internal/application/reconciler"
	"github.com/progprogect/erp-shvedoff-sub000/internal/infrastructure/notify"
	"github.com/progprogect/erp-shvedoff-sub000/internal/infrastructure/postgres"
	"github.com/progprogect/erp-shvedoff-sub000/pkg/config"
	"github.com/progprogect/erp-shvedoff-sub000/pkg/logger"
)

// erpctl herramienta de operador para el núcleo de inventario: barridos de
// integridad, reparto manual de stock y reconciliación de producción contra la
// base de datos configurada.

var actor string

var rootCmd = &cobra.Command{
	Use:   "erpctl",
	Short: "Mantenimiento del núcleo de inventario y asignación",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "erpctl", "identificador del operador para los movimientos")
	rootCmd.AddCommand(validateCmd, fixCmd, distributeCmd, reconcileCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// core agrupa los casos de uso ya cableados contra PostgreSQL.
type core struct {
	ledger     *ledger.StockLedger
	allocator  *allocator.StockAllocator
	reconciler *reconciler.ProductionReconciler
	close      func()
}

func buildCore(ctx context.Context) (*core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}

	stockRepo := postgres.NewStockRepository(pool)
	movRepo := postgres.NewStockMovementRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	taskRepo := postgres.NewProductionTaskRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	txRunner := postgres.NewTxRunner(pool)
	notifier := notify.NewLoggerNotifier(log.Component("notify"))

	stockLedger := ledger.NewStockLedger(txRunner, stockRepo, movRepo, auditRepo, log.Component("ledger"))
	availability := analyzer.NewAvailabilityAnalyzer(orderRepo, stockRepo, taskRepo)
	alloc := allocator.NewStockAllocator(stockLedger, orderRepo, availability, notifier, log.Component("allocator"))
	recon := reconciler.NewProductionReconciler(availability, taskRepo, orderRepo, notifier, log.Component("reconciler"))

	// Toda entrada de mercancía confirmada dispara el reparto automático.
	stockLedger.RegisterHook(alloc.AsPostCommitHook())

	return &core{
		ledger:     stockLedger,
		allocator:  alloc,
		reconciler: recon,
		close:      pool.Close,
	}, nil
}

var validateCmd = &cobra.Command{
	Use:   "validate [productID]",
	Short: "Verifica las invariantes de stock sin mutar nada",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildCore(ctx)
		if err != nil {
			return err
		}
		defer c.close()

		var violations []dto.StockViolationDTO
		if len(args) == 1 {
			violations, err = c.ledger.Validate(ctx, args[0])
		} else {
			violations, err = c.ledger.ValidateAll(ctx)
		}
		if err != nil {
			return err
		}
		if len(violations) == 0 {
			fmt.Println("sin violaciones")
			return nil
		}
		renderViolations(violations)
		return nil
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Corrige inconsistencias de stock registrando movimientos correctivos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildCore(ctx)
		if err != nil {
			return err
		}
		defer c.close()

		fixed, err := c.ledger.FixInconsistencies(ctx, actor)
		if err != nil {
			return err
		}
		if len(fixed) == 0 {
			fmt.Println("nada que corregir")
			return nil
		}
		renderViolations(fixed)
		return nil
	},
}

var distributeCmd = &cobra.Command{
	Use:   "distribute <productID> <cantidad>",
	Short: "Reparte stock disponible entre los pedidos en espera de un producto",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("cantidad inválida %q: %w", args[1], err)
		}
		ctx := cmd.Context()
		c, err := buildCore(ctx)
		if err != nil {
			return err
		}
		defer c.close()

		result, err := c.allocator.Distribute(ctx, args[0], qty, actor)
		if err != nil {
			return err
		}
		fmt.Printf("repartido %s de %s entre %d pedido(s)\n",
			result.Distributed, qty, len(result.AffectedOrderIDs))
		for _, id := range result.AffectedOrderIDs {
			fmt.Println("  -", id)
		}
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <orderID>",
	Short: "Sincroniza las tareas de producción de un pedido con su déficit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := buildCore(ctx)
		if err != nil {
			return err
		}
		defer c.close()

		result, err := c.reconciler.Reconcile(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("pedido %s: %d tarea(s) creada(s), %d recortada(s), %d cancelada(s)\n",
			result.OrderID, result.Created, result.Shrunk, result.Cancelled)
		return nil
	},
}

func renderViolations(violations []dto.StockViolationDTO) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Producto", "Regla", "Actual", "Reservado", "Esperado", "Detalle"})
	for _, v := range violations {
		t.AppendRow(table.Row{v.ProductID, v.Rule, v.CurrentQuantity, v.ReservedQuantity, v.Expected, v.Detail})
	}
	t.Render()
}
