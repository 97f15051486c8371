package postgres

const selectCustomer = `
SELECT id, first_name, last_name, email, phone_number, address, role, created_at, updated_at
FROM customers`

const insertCustomer = `
INSERT INTO customers (first_name, last_name, email, phone_number, address, role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at`

const updateCustomer = `
UPDATE customers
SET first_name = $2, last_name = $3, email = $4, phone_number = $5, address = $6, role = $7,
    updated_at = now()
WHERE id = $1
RETURNING updated_at`

const selectProduct = `
SELECT id, name, description, unit_price, stock, category_id, created_at, updated_at
FROM products`

const insertProduct = `
INSERT INTO products (name, description, unit_price, stock, category_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`

const updateProduct = `
UPDATE products
SET name = $2, description = $3, unit_price = $4, stock = $5, category_id = $6,
    updated_at = now()
WHERE id = $1
RETURNING updated_at`

const selectSale = `
SELECT id, invoice_number, sale_date, client_id, subtotal, tax_rate, total,
       payment_method, is_paid, notes, created_at, updated_at
FROM sales`

const insertSale = `
INSERT INTO sales (invoice_number, sale_date, client_id, subtotal, tax_rate, total,
                   payment_method, is_paid, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at, updated_at`

const updateSale = `
UPDATE sales
SET invoice_number = $2, sale_date = $3, client_id = $4, subtotal = $5, tax_rate = $6,
    total = $7, payment_method = $8, is_paid = $9, notes = $10, updated_at = now()
WHERE id = $1
RETURNING updated_at`

const selectSaleItem = `
SELECT id, sale_id, product_id, quantity, unit_price, line_total, created_at, updated_at
FROM sale_items
WHERE sale_id = $1 AND product_id = $2`

const insertSaleItem = `
INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`

const updateSaleItem = `
UPDATE sale_items
SET quantity = $2, unit_price = $3, line_total = $4, updated_at = now()
WHERE id = $1
RETURNING updated_at`

const insertRun = `
INSERT INTO import_runs (id, file_name, started_at, finished_at, ip_address, user_agent,
                         total_rows, inserted, updated, error_count, result)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const selectRun = `
SELECT id, file_name, started_at, finished_at, ip_address, user_agent, result
FROM import_runs`
